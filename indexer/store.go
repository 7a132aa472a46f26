package indexer

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
	"lukechampine.com/blake3"

	"pacochain/core/events"
	"pacochain/core/types"
	"pacochain/observability"
)

const defaultHistoryLimit = 100

// ErrStoreClosed is returned after Close.
var ErrStoreClosed = errors.New("indexer: store closed")

// Store persists committed events for history queries and exports.
type Store struct {
	db     *gorm.DB
	logger *slog.Logger
	now    func() time.Time

	mu     sync.Mutex
	seq    uint64
	closed bool
}

// Option customises the store.
type Option func(*Store)

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithClock sets the function used to timestamp records.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// OpenDialector selects the gorm driver for dsn. postgres:// URLs and
// key=value strings containing host= use Postgres; anything else is treated
// as a SQLite path or URI.
func OpenDialector(dsn string) (gorm.Dialector, error) {
	trimmed := strings.TrimSpace(dsn)
	if trimmed == "" {
		return nil, fmt.Errorf("indexer: dsn required")
	}
	lower := strings.ToLower(trimmed)
	if strings.HasPrefix(lower, "postgres://") || strings.HasPrefix(lower, "postgresql://") || strings.Contains(lower, "host=") {
		return postgres.Open(trimmed), nil
	}
	return sqlite.Open(trimmed), nil
}

// Open connects to dsn, migrates the schema and returns a store.
func Open(dsn string, opts ...Option) (*Store, error) {
	dialector, err := OpenDialector(dsn)
	if err != nil {
		return nil, err
	}
	db, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("indexer: open database: %w", err)
	}
	return NewStore(db, opts...)
}

// NewStore wraps an existing connection.
func NewStore(db *gorm.DB, opts ...Option) (*Store, error) {
	if db == nil {
		return nil, fmt.Errorf("indexer: database required")
	}
	if err := AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("indexer: migrate: %w", err)
	}
	store := &Store{db: db, logger: slog.Default(), now: time.Now}
	for _, opt := range opts {
		opt(store)
	}
	if store.logger == nil {
		store.logger = slog.Default()
	}
	var last EventRecord
	err := db.Order("sequence desc").Limit(1).Find(&last).Error
	if err != nil {
		return nil, fmt.Errorf("indexer: load sequence: %w", err)
	}
	store.seq = last.Sequence
	return store, nil
}

// Emit implements events.Emitter. Failures are logged and counted; the ledger
// has already committed.
func (s *Store) Emit(evt events.Event) {
	payload, ok := events.Payload(evt)
	if !ok {
		return
	}
	s.mu.Lock()
	s.seq++
	seq := s.seq
	s.mu.Unlock()
	if _, err := s.Record(context.Background(), seq, payload); err != nil {
		observability.Events().RecordDropped("indexer")
		s.logger.Warn("indexer: record event failed",
			slog.String("type", payload.Type),
			slog.Uint64("sequence", seq),
			slog.Any("error", err))
	}
}

// Record stores evt under seq. Re-recording the same event at the same
// sequence is a no-op reporting false.
func (s *Store) Record(ctx context.Context, seq uint64, evt *types.Event) (bool, error) {
	if evt == nil {
		return false, fmt.Errorf("indexer: event required")
	}
	s.mu.Lock()
	closed := s.closed
	if seq > s.seq {
		s.seq = seq
	}
	s.mu.Unlock()
	if closed {
		return false, ErrStoreClosed
	}
	attrs, err := json.Marshal(evt.Attributes)
	if err != nil {
		return false, fmt.Errorf("indexer: encode attributes: %w", err)
	}
	record := EventRecord{
		ID:          uuid.New(),
		Sequence:    seq,
		Fingerprint: Fingerprint(seq, evt),
		Type:        evt.Type,
		AssetID:     parseAssetID(evt.Attr("assetId")),
		Account:     primaryAccount(evt),
		Attributes:  string(attrs),
		CreatedAt:   s.now().UTC(),
	}
	result := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&record)
	if result.Error != nil {
		return false, fmt.Errorf("indexer: insert: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

// Fingerprint is the blake3 digest of the sequence, type and sorted
// attributes of an event.
func Fingerprint(seq uint64, evt *types.Event) string {
	var b strings.Builder
	b.WriteString(strconv.FormatUint(seq, 10))
	b.WriteByte('|')
	b.WriteString(evt.Type)
	keys := make([]string, 0, len(evt.Attributes))
	for k := range evt.Attributes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		b.WriteByte('|')
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(evt.Attributes[k])
	}
	sum := blake3.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

// Query narrows history lookups. Zero fields are ignored.
type Query struct {
	AssetID  uint64
	Account  string
	Type     string
	AfterSeq uint64
	Limit    int
}

// Events returns matching records ordered by sequence.
func (s *Store) Events(ctx context.Context, q Query) ([]EventRecord, error) {
	tx := s.db.WithContext(ctx).Model(&EventRecord{})
	if q.AssetID != 0 {
		tx = tx.Where("asset_id = ?", q.AssetID)
	}
	if account := strings.TrimSpace(q.Account); account != "" {
		tx = tx.Where("account = ?", account)
	}
	if q.Type != "" {
		tx = tx.Where("type = ?", q.Type)
	}
	if q.AfterSeq != 0 {
		tx = tx.Where("sequence > ?", q.AfterSeq)
	}
	limit := q.Limit
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	var out []EventRecord
	if err := tx.Order("sequence asc").Limit(limit).Find(&out).Error; err != nil {
		return nil, fmt.Errorf("indexer: query: %w", err)
	}
	return out, nil
}

// History returns the events of one asset ordered by sequence.
func (s *Store) History(ctx context.Context, assetID uint64, limit int) ([]EventRecord, error) {
	if assetID == 0 {
		return nil, fmt.Errorf("indexer: asset id required")
	}
	return s.Events(ctx, Query{AssetID: assetID, Limit: limit})
}

// DecodeAttributes returns the attribute map of a record.
func (r EventRecord) DecodeAttributes() (map[string]string, error) {
	out := make(map[string]string)
	if r.Attributes == "" {
		return out, nil
	}
	if err := json.Unmarshal([]byte(r.Attributes), &out); err != nil {
		return nil, fmt.Errorf("indexer: decode attributes: %w", err)
	}
	return out, nil
}

// Close releases the underlying connection.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func parseAssetID(value string) uint64 {
	id, err := strconv.ParseUint(strings.TrimSpace(value), 10, 64)
	if err != nil {
		return 0
	}
	return id
}

func primaryAccount(evt *types.Event) string {
	for _, key := range []string{"owner", "account", "recipient", "to", "from"} {
		if v := evt.Attr(key); v != "" {
			return v
		}
	}
	return ""
}
