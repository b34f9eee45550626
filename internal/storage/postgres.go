package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"anonchat/backend/internal/metrics"
	"anonchat/backend/internal/models"
)

// GormStore is the relational state backend. The waiting queue is the
// queue_entries table, the pair relation is the set of Open dialog rows
// and presence is users.state, the layout of the persistence-backed
// deployment.
type GormStore struct {
	db       *gorm.DB
	queueTTL time.Duration

	now func() time.Time
}

func NewGormStore(db *gorm.DB, queueTTL time.Duration) *GormStore {
	return &GormStore{db: db, queueTTL: queueTTL, now: time.Now}
}

func (s *GormStore) Enqueue(ctx context.Context, userID string) error {
	return withRetry(ctx, func() error {
		entry := models.QueueEntry{UserID: userID, EnqueuedAt: s.now()}
		return s.db.WithContext(ctx).Create(&entry).Error
	})
}

func (s *GormStore) DequeueSkipping(ctx context.Context, selfID string) (string, bool, error) {
	var candidate string
	var found bool
	err := withRetry(ctx, func() error {
		candidate, found = "", false
		cutoff := s.now().Add(-s.queueTTL)
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			expired := tx.Where("enqueued_at < ?", cutoff).Delete(&models.QueueEntry{})
			if expired.Error != nil {
				return expired.Error
			}
			if expired.RowsAffected > 0 {
				metrics.RecordQueueExpiry(int(expired.RowsAffected))
			}

			for {
				var entry models.QueueEntry
				err := tx.Order("id asc").First(&entry).Error
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return nil
				}
				if err != nil {
					return err
				}
				if err := tx.Delete(&entry).Error; err != nil {
					return err
				}
				if entry.UserID == selfID {
					continue
				}
				candidate, found = entry.UserID, true
				return nil
			}
		})
	})
	if err != nil {
		return "", false, err
	}
	return candidate, found, nil
}

func (s *GormStore) RemoveFromQueue(ctx context.Context, userID string) error {
	return withRetry(ctx, func() error {
		return s.db.WithContext(ctx).
			Where("user_id = ?", userID).
			Delete(&models.QueueEntry{}).Error
	})
}

func (s *GormStore) IsQueued(ctx context.Context, userID string) (bool, error) {
	var queued bool
	err := withRetry(ctx, func() error {
		cutoff := s.now().Add(-s.queueTTL)
		var count int64
		err := s.db.WithContext(ctx).Model(&models.QueueEntry{}).
			Where("user_id = ? AND enqueued_at >= ?", userID, cutoff).
			Count(&count).Error
		queued = count > 0
		return err
	})
	return queued, err
}

func (s *GormStore) QueueDepth(ctx context.Context) (int, error) {
	var depth int
	err := withRetry(ctx, func() error {
		cutoff := s.now().Add(-s.queueTTL)
		var count int64
		err := s.db.WithContext(ctx).Model(&models.QueueEntry{}).
			Where("enqueued_at >= ?", cutoff).
			Count(&count).Error
		depth = int(count)
		return err
	})
	return depth, err
}

// openDialogFor finds the Open dialog userID participates in.
func openDialogFor(tx *gorm.DB, userID string) (*models.Dialog, error) {
	var dialog models.Dialog
	err := tx.Where("status = ?", models.DialogStatusOpen).
		Where("participant1 = ? OR participant2 = ?", userID, userID).
		First(&dialog).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &dialog, nil
}

func (s *GormStore) SetPair(ctx context.Context, a, b string) error {
	return withRetry(ctx, func() error {
		lo, hi := orderPair(a, b)
		at := s.now()
		dialog := models.Dialog{
			DialogID:     fmt.Sprintf("%s:%s:%d", lo, hi, at.Unix()),
			Participant1: lo,
			Participant2: hi,
			CreatedAt:    at,
			Status:       models.DialogStatusOpen,
		}
		return s.db.WithContext(ctx).Create(&dialog).Error
	})
}

func (s *GormStore) GetPartner(ctx context.Context, userID string) (string, bool, error) {
	var partner string
	var ok bool
	err := withRetry(ctx, func() error {
		dialog, err := openDialogFor(s.db.WithContext(ctx), userID)
		if err != nil {
			return err
		}
		if dialog == nil {
			partner, ok = "", false
			return nil
		}
		partner, ok = dialog.Participant2, true
		if dialog.Participant2 == userID {
			partner = dialog.Participant1
		}
		return nil
	})
	return partner, ok, err
}

func (s *GormStore) ClearPair(ctx context.Context, userID string) (string, bool, error) {
	var partner string
	var ok bool
	err := withRetry(ctx, func() error {
		partner, ok = "", false
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			dialog, err := openDialogFor(tx, userID)
			if err != nil || dialog == nil {
				return err
			}
			if err := tx.Model(dialog).
				Update("status", models.DialogStatusClosed).Error; err != nil {
				return err
			}
			partner, ok = dialog.Participant2, true
			if dialog.Participant2 == userID {
				partner = dialog.Participant1
			}
			return nil
		})
	})
	return partner, ok, err
}

func (s *GormStore) PairCount(ctx context.Context) (int, error) {
	var count int
	err := withRetry(ctx, func() error {
		var n int64
		err := s.db.WithContext(ctx).Model(&models.Dialog{}).
			Where("status = ?", models.DialogStatusOpen).
			Count(&n).Error
		count = int(n)
		return err
	})
	return count, err
}

func (s *GormStore) SetPresence(ctx context.Context, userID, state string) error {
	return withRetry(ctx, func() error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var user models.User
			if err := tx.FirstOrCreate(&user, models.User{ID: userID}).Error; err != nil {
				return err
			}
			return tx.Model(&user).Update("state", state).Error
		})
	})
}

func (s *GormStore) GetPresence(ctx context.Context, userID string) (string, error) {
	var state string
	err := withRetry(ctx, func() error {
		var user models.User
		err := s.db.WithContext(ctx).First(&user, "id = ?", userID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			state = models.PresenceOffline
			return nil
		}
		if err != nil {
			return err
		}
		state = user.State
		return nil
	})
	return state, err
}

// EnsureUser registers a user on first contact and refreshes the display
// name when it changed.
func (s *GormStore) EnsureUser(ctx context.Context, userID, displayName string) error {
	return withRetry(ctx, func() error {
		var user models.User
		defaults := models.User{ID: userID, DisplayName: displayName, State: models.PresenceOffline}
		result := s.db.WithContext(ctx).
			Where("id = ?", userID).
			FirstOrCreate(&user, defaults)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 && displayName != "" && user.DisplayName != displayName {
			return s.db.WithContext(ctx).Model(&user).
				Update("display_name", displayName).Error
		}
		return nil
	})
}

// orderPair returns the two ids with the lower one first.
func orderPair(a, b string) (string, string) {
	if b < a {
		return b, a
	}
	return a, b
}
