package telegram

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/naman7474/vak-social-media/internal/models"
)

// GetOrCreateSession returns the conversation session for a user in a chat,
// creating an idle one on first contact.
func GetOrCreateSession(gdb *gorm.DB, userID, chatID int64) (*models.TelegramSession, error) {
	userKey := fmt.Sprintf("%d", userID)
	chatKey := fmt.Sprintf("%d", chatID)

	var session models.TelegramSession
	err := gdb.Where("telegram_user_id = ? AND chat_id = ?", userKey, chatKey).First(&session).Error
	if err == nil {
		return &session, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, err
	}

	session = models.TelegramSession{
		TelegramUserID: userKey,
		ChatID:         chatKey,
		State:          models.SessionStateIdle,
		ContextJSON:    datatypes.JSON([]byte("{}")),
	}
	if err := gdb.Create(&session).Error; err != nil {
		return nil, err
	}
	return &session, nil
}

// UserPostsToday counts posts the user created in the trailing 24 hours.
func UserPostsToday(gdb *gorm.DB, userID int64) (int64, error) {
	start := time.Now().UTC().Add(-24 * time.Hour)
	var count int64
	err := gdb.Model(&models.Post{}).
		Where("created_by = ? AND created_at >= ?", fmt.Sprintf("%d", userID), start).
		Count(&count).Error
	return count, err
}

// LookupProductByCode finds a catalog product by its code, with photos.
func LookupProductByCode(gdb *gorm.DB, productCode string) (*models.Product, error) {
	var product models.Product
	err := gdb.Preload("Photos").Where("product_code = ?", productCode).First(&product).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// ProductPhotoURLs returns catalog photo URLs, primary photo first.
func ProductPhotoURLs(product *models.Product) []string {
	photos := make([]models.ProductPhoto, len(product.Photos))
	copy(photos, product.Photos)
	sort.SliceStable(photos, func(i, j int) bool {
		if photos[i].IsPrimary != photos[j].IsPrimary {
			return photos[i].IsPrimary
		}
		return photos[i].ID < photos[j].ID
	})
	urls := make([]string, 0, len(photos))
	for _, p := range photos {
		urls = append(urls, p.PhotoURL)
	}
	return urls
}

// CreateDraftPost creates the draft row that anchors a new pipeline run.
func CreateDraftPost(gdb *gorm.DB, userID int64, sourceURL string, product *models.Product, photoURLs, photoFileIDs []string) (*models.Post, error) {
	mediaType := models.MediaTypeSingle
	if len(photoURLs) > 1 {
		mediaType = models.MediaTypeCarousel
	}

	urlsJSON, _ := json.Marshal(photoURLs)
	fileIDsJSON, _ := json.Marshal(photoFileIDs)
	createdBy := fmt.Sprintf("%d", userID)

	post := models.Post{
		CreatedBy:            &createdBy,
		ReferenceURL:         &sourceURL,
		Status:               models.PostStatusDraft,
		MediaType:            mediaType,
		InputPhotoURLs:       datatypes.JSON(urlsJSON),
		TelegramPhotoFileIDs: datatypes.JSON(fileIDsJSON),
	}
	if product != nil {
		post.ProductID = &product.ID
	}
	if err := gdb.Create(&post).Error; err != nil {
		return nil, err
	}
	return &post, nil
}
