package localstore

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Entry is one persisted key of the gorm-backed store.
type Entry struct {
	Key       string    `gorm:"column:entry_key;primaryKey;size:512" json:"key"`
	Value     string    `gorm:"column:value;type:text" json:"value"`
	UpdatedAt time.Time `gorm:"column:updated_at;not null" json:"updated_at"`
}

func (Entry) TableName() string { return "local_entry" }

type GormKV struct {
	db *gorm.DB
}

// NewGormKV migrates the entry table and returns a KV over it. Works with the
// sqlite and postgres dialects alike.
func NewGormKV(db *gorm.DB) (*GormKV, error) {
	if db == nil {
		return nil, errors.New("gorm db required")
	}
	if err := db.AutoMigrate(&Entry{}); err != nil {
		return nil, err
	}
	return &GormKV{db: db}, nil
}

func (g *GormKV) Get(ctx context.Context, key string) (string, bool, error) {
	var row Entry
	err := g.db.WithContext(ctx).Where("entry_key = ?", key).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return row.Value, true, nil
}

func (g *GormKV) Set(ctx context.Context, key, value string) error {
	row := Entry{Key: key, Value: value, UpdatedAt: time.Now().UTC()}
	return g.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "entry_key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
		}).
		Create(&row).Error
}

func (g *GormKV) Delete(ctx context.Context, key string) error {
	return g.db.WithContext(ctx).Where("entry_key = ?", key).Delete(&Entry{}).Error
}

func (g *GormKV) Keys(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	err := g.db.WithContext(ctx).
		Model(&Entry{}).
		Where("entry_key LIKE ? ESCAPE '\\'", escapeLike(prefix)+"%").
		Pluck("entry_key", &keys).Error
	if err != nil {
		return nil, err
	}
	return keys, nil
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
