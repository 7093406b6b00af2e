package telegram

import (
	"sync"
	"testing"
	"time"
)

func TestAlbumCacheFinalizesOnce(t *testing.T) {
	var mu sync.Mutex
	var got []*Album
	cache := NewAlbumCache(30*time.Millisecond, func(album *Album) {
		mu.Lock()
		got = append(got, album)
		mu.Unlock()
	})

	cache.Add("group-1", 100, 200, []string{"f1"}, []string{"u1"}, "")
	cache.Add("group-1", 100, 200, []string{"f2"}, []string{"u2"}, "https://pin.it/abc style this")
	cache.Add("group-1", 100, 200, []string{"f3"}, []string{"u3"}, "")

	deadline := time.After(2 * time.Second)
	for {
		mu.Lock()
		done := len(got) > 0
		mu.Unlock()
		if done {
			break
		}
		select {
		case <-deadline:
			t.Fatal("album never finalized")
		case <-time.After(10 * time.Millisecond):
		}
	}

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 1 {
		t.Fatalf("finalized %d times, want 1", len(got))
	}
	album := got[0]
	if len(album.PhotoFileIDs) != 3 {
		t.Errorf("file ids = %v, want 3 accumulated", album.PhotoFileIDs)
	}
	if album.Text != "https://pin.it/abc style this" {
		t.Errorf("text = %q", album.Text)
	}
	if album.ChatID != 100 || album.UserID != 200 {
		t.Errorf("chat/user = %d/%d", album.ChatID, album.UserID)
	}
	if cache.Pending() != 0 {
		t.Errorf("pending = %d after flush, want 0", cache.Pending())
	}
}

func TestAlbumCacheDropsCaptionlessGroup(t *testing.T) {
	var mu sync.Mutex
	finalized := 0
	cache := NewAlbumCache(20*time.Millisecond, func(album *Album) {
		mu.Lock()
		finalized++
		mu.Unlock()
	})

	cache.Add("group-2", 100, 200, []string{"f1"}, []string{"u1"}, "")
	cache.Add("group-2", 100, 200, []string{"f2"}, []string{"u2"}, "")

	time.Sleep(150 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if finalized != 0 {
		t.Errorf("captionless album finalized %d times, want 0", finalized)
	}
	if cache.Pending() != 0 {
		t.Errorf("pending = %d, want 0 (dropped)", cache.Pending())
	}
}

func TestAlbumCacheSeparateGroups(t *testing.T) {
	var mu sync.Mutex
	var texts []string
	cache := NewAlbumCache(20*time.Millisecond, func(album *Album) {
		mu.Lock()
		texts = append(texts, album.Text)
		mu.Unlock()
	})

	cache.Add("group-a", 1, 1, []string{"a"}, []string{"a"}, "first https://pin.it/a")
	cache.Add("group-b", 1, 1, []string{"b"}, []string{"b"}, "second https://pin.it/b")

	time.Sleep(150 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if len(texts) != 2 {
		t.Fatalf("finalized %d groups, want 2", len(texts))
	}
}
