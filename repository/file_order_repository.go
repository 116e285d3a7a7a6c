package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/yashrajoria/checkout-service/models"
)

// FileOrderRepository keeps every order in a single JSON array on disk.
// All read-modify-write cycles run under one mutex, so two updates to the
// same order can never interleave and lose a write.
type FileOrderRepository struct {
	path string
	mu   sync.Mutex
}

// NewFileOrderRepository ensures the data directory exists and returns a
// repository backed by path. A missing file reads as an empty order list.
func NewFileOrderRepository(path string) (*FileOrderRepository, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return &FileOrderRepository{path: path}, nil
}

func (r *FileOrderRepository) load() ([]models.Order, error) {
	data, err := os.ReadFile(r.path)
	if errors.Is(err, fs.ErrNotExist) {
		return []models.Order{}, nil
	}
	if err != nil {
		return nil, unavailable("read orders file", err)
	}
	if len(data) == 0 {
		return []models.Order{}, nil
	}
	var orders []models.Order
	if err := json.Unmarshal(data, &orders); err != nil {
		return nil, unavailable("decode orders file", err)
	}
	return orders, nil
}

// save writes to a sibling temp file and renames it over the original so a
// crash mid-write never leaves a truncated file behind.
func (r *FileOrderRepository) save(orders []models.Order) error {
	data, err := json.MarshalIndent(orders, "", "  ")
	if err != nil {
		return unavailable("encode orders", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(r.path), filepath.Base(r.path)+".*.tmp")
	if err != nil {
		return unavailable("create temp file", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) //nolint:errcheck

	if _, err := tmp.Write(data); err != nil {
		tmp.Close() //nolint:errcheck
		return unavailable("write orders file", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close() //nolint:errcheck
		return unavailable("sync orders file", err)
	}
	if err := tmp.Close(); err != nil {
		return unavailable("close orders file", err)
	}
	if err := os.Rename(tmpName, r.path); err != nil {
		return unavailable("replace orders file", err)
	}
	return nil
}

// mutate loads all orders, applies fn to the order with the given id and
// persists the result if fn succeeds.
func (r *FileOrderRepository) mutate(id string, fn func(o *models.Order) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	orders, err := r.load()
	if err != nil {
		return err
	}
	for i := range orders {
		if orders[i].ID != id {
			continue
		}
		if err := fn(&orders[i]); err != nil {
			return err
		}
		return r.save(orders)
	}
	return ErrNotFound
}

func (r *FileOrderRepository) Create(_ context.Context, order *models.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	orders, err := r.load()
	if err != nil {
		return err
	}
	orders = append(orders, *order)
	return r.save(orders)
}

func (r *FileOrderRepository) FindByID(_ context.Context, id string) (*models.Order, error) {
	return r.findOne(func(o *models.Order) bool { return o.ID == id })
}

func (r *FileOrderRepository) FindBySessionID(_ context.Context, sessionID string) (*models.Order, error) {
	if sessionID == "" {
		return nil, ErrNotFound
	}
	return r.findOne(func(o *models.Order) bool { return o.StripeSessionID == sessionID })
}

func (r *FileOrderRepository) findOne(match func(o *models.Order) bool) (*models.Order, error) {
	r.mu.Lock()
	orders, err := r.load()
	r.mu.Unlock()
	if err != nil {
		return nil, err
	}
	for i := range orders {
		if match(&orders[i]) {
			o := orders[i]
			return &o, nil
		}
	}
	return nil, ErrNotFound
}

func (r *FileOrderRepository) FindByUserID(_ context.Context, userID string) ([]models.Order, error) {
	r.mu.Lock()
	orders, err := r.load()
	r.mu.Unlock()
	if err != nil {
		return nil, err
	}
	out := make([]models.Order, 0)
	for _, o := range orders {
		if o.UserID == userID {
			out = append(out, o)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *FileOrderRepository) UpdateStatus(_ context.Context, id string, status models.OrderStatus) error {
	return r.mutate(id, func(o *models.Order) error {
		o.Status = status
		o.UpdatedAt = now()
		return nil
	})
}

func (r *FileOrderRepository) TransitionStatus(_ context.Context, id string, from, to models.OrderStatus) error {
	return r.mutate(id, func(o *models.Order) error {
		if o.Status != from {
			return ErrStatusConflict
		}
		o.Status = to
		o.UpdatedAt = now()
		return nil
	})
}

func (r *FileOrderRepository) SetSessionID(_ context.Context, id, sessionID string) error {
	return r.mutate(id, func(o *models.Order) error {
		o.StripeSessionID = sessionID
		o.UpdatedAt = now()
		return nil
	})
}
