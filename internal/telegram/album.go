package telegram

import (
	"sync"
	"time"
)

// Album is one media group accumulated across several Telegram updates.
// Telegram delivers album photos as separate messages sharing a media group
// ID, with the caption attached to only one of them.
type Album struct {
	ChatID       int64
	UserID       int64
	PhotoFileIDs []string
	PhotoURLs    []string
	Text         string
	CreatedAt    time.Time

	scheduled bool
}

// AlbumCache buffers media-group messages until the group has gone quiet,
// then hands the assembled album to the finalize callback exactly once.
// Albums that never carried a caption are dropped silently.
type AlbumCache struct {
	mu         sync.Mutex
	entries    map[string]*Album
	quiescence time.Duration
	finalize   func(album *Album)
}

// NewAlbumCache creates a cache that fires finalize after quiescence of
// inactivity following the first message of each media group.
func NewAlbumCache(quiescence time.Duration, finalize func(album *Album)) *AlbumCache {
	return &AlbumCache{
		entries:    make(map[string]*Album),
		quiescence: quiescence,
		finalize:   finalize,
	}
}

// Add folds one message into its media group. The first message of a group
// schedules the single finalize timer; later messages only accumulate.
func (c *AlbumCache) Add(mediaGroupID string, chatID, userID int64, fileIDs, urls []string, caption string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[mediaGroupID]
	if !ok {
		entry = &Album{
			ChatID:    chatID,
			UserID:    userID,
			CreatedAt: time.Now(),
		}
		c.entries[mediaGroupID] = entry
	}
	entry.PhotoFileIDs = append(entry.PhotoFileIDs, fileIDs...)
	entry.PhotoURLs = append(entry.PhotoURLs, urls...)
	if caption != "" {
		entry.Text = caption
	}

	if !entry.scheduled {
		entry.scheduled = true
		time.AfterFunc(c.quiescence, func() { c.flush(mediaGroupID) })
	}
}

// flush removes the album from the cache and finalizes it if it carried text.
func (c *AlbumCache) flush(mediaGroupID string) {
	c.mu.Lock()
	entry := c.entries[mediaGroupID]
	delete(c.entries, mediaGroupID)
	c.mu.Unlock()

	if entry == nil || entry.Text == "" {
		return
	}
	c.finalize(entry)
}

// Pending returns how many media groups are currently buffered.
func (c *AlbumCache) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
