package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"trade_core/internal/domain"
)

// OrderRecord is the persisted form of the latest state of one order.
type OrderRecord struct {
	VtOrderID   string `gorm:"primaryKey"`
	VtSymbol    string `gorm:"index"`
	OrderID     string
	Symbol      string
	Exchange    string
	Type        string
	Direction   string
	Offset      string
	Price       string
	Volume      string
	Traded      string
	Status      string
	Reference   string
	AdapterName string `gorm:"index"`
	Datetime    time.Time
	UpdatedAt   time.Time
}

// TradeRecord is one persisted fill. Trades are written once.
type TradeRecord struct {
	VtTradeID   string `gorm:"primaryKey"`
	VtOrderID   string `gorm:"index"`
	VtSymbol    string `gorm:"index"`
	TradeID     string
	Symbol      string
	Exchange    string
	Direction   string
	Offset      string
	Price       string
	Volume      string
	AdapterName string
	Datetime    time.Time
}

// Storage is the order and trade journal.
type Storage struct {
	db *gorm.DB
}

// NewStorage opens (or creates) the journal at path. An empty path resolves
// to the per-user data directory.
func NewStorage(path string) (*Storage, error) {
	if path == "" {
		p, err := defaultDBPath()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve DB path: %w", err)
		}
		path = p
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create DB directory: %w", err)
	}

	// Pure Go SQLite driver
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.AutoMigrate(&OrderRecord{}, &TradeRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &Storage{db: db}, nil
}

func defaultDBPath() (string, error) {
	var configDir string
	var err error

	if runtime.GOOS == "windows" {
		configDir = os.Getenv("LOCALAPPDATA")
		if configDir == "" {
			configDir, err = os.UserConfigDir()
		}
	} else {
		configDir, err = os.UserConfigDir()
	}
	if err != nil {
		return "", err
	}

	return filepath.Join(configDir, "TradeCore", "data", "journal.db"), nil
}

// Close releases the underlying connection pool.
func (s *Storage) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// ======================================================================================
// Orders
// ======================================================================================

// SaveOrder upserts the latest state of an order.
func (s *Storage) SaveOrder(order *domain.OrderData) error {
	rec := OrderRecord{
		VtOrderID:   order.VtOrderID(),
		VtSymbol:    order.VtSymbol(),
		OrderID:     order.OrderID,
		Symbol:      order.Symbol,
		Exchange:    string(order.Exchange),
		Type:        string(order.Type),
		Direction:   string(order.Direction),
		Offset:      string(order.Offset),
		Price:       order.Price.String(),
		Volume:      order.Volume.String(),
		Traded:      order.Traded.String(),
		Status:      string(order.Status),
		Reference:   order.Reference,
		AdapterName: order.AdapterName,
		Datetime:    order.Datetime,
	}
	return s.db.Save(&rec).Error
}

// GetOrder returns the journaled order, or nil when unknown.
func (s *Storage) GetOrder(vtOrderID string) (*domain.OrderData, error) {
	var rec OrderRecord
	err := s.db.First(&rec, "vt_order_id = ?", vtOrderID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil // Not found is not an error
	}
	if err != nil {
		return nil, err
	}
	return rec.toDomain()
}

// GetOrdersBySymbol returns every journaled order of vtSymbol.
func (s *Storage) GetOrdersBySymbol(vtSymbol string) ([]*domain.OrderData, error) {
	var recs []OrderRecord
	if err := s.db.Where("vt_symbol = ?", vtSymbol).Order("datetime").Find(&recs).Error; err != nil {
		return nil, err
	}
	out := make([]*domain.OrderData, 0, len(recs))
	for i := range recs {
		o, err := recs[i].toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, nil
}

func (r *OrderRecord) toDomain() (*domain.OrderData, error) {
	price, err := decimal.NewFromString(r.Price)
	if err != nil {
		return nil, fmt.Errorf("order %s price: %w", r.VtOrderID, err)
	}
	volume, err := decimal.NewFromString(r.Volume)
	if err != nil {
		return nil, fmt.Errorf("order %s volume: %w", r.VtOrderID, err)
	}
	traded, err := decimal.NewFromString(r.Traded)
	if err != nil {
		return nil, fmt.Errorf("order %s traded: %w", r.VtOrderID, err)
	}
	return &domain.OrderData{
		Symbol:      r.Symbol,
		Exchange:    domain.Exchange(r.Exchange),
		OrderID:     r.OrderID,
		Type:        domain.OrderType(r.Type),
		Direction:   domain.Direction(r.Direction),
		Offset:      domain.Offset(r.Offset),
		Price:       price,
		Volume:      volume,
		Traded:      traded,
		Status:      domain.Status(r.Status),
		Datetime:    r.Datetime,
		Reference:   r.Reference,
		AdapterName: r.AdapterName,
	}, nil
}

// ======================================================================================
// Trades
// ======================================================================================

// SaveTrade inserts a fill. A fill already journaled is left untouched.
func (s *Storage) SaveTrade(trade *domain.TradeData) error {
	rec := TradeRecord{
		VtTradeID:   trade.VtTradeID(),
		VtOrderID:   trade.VtOrderID(),
		VtSymbol:    trade.VtSymbol(),
		TradeID:     trade.TradeID,
		Symbol:      trade.Symbol,
		Exchange:    string(trade.Exchange),
		Direction:   string(trade.Direction),
		Offset:      string(trade.Offset),
		Price:       trade.Price.String(),
		Volume:      trade.Volume.String(),
		AdapterName: trade.AdapterName,
		Datetime:    trade.Datetime,
	}
	return s.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&rec).Error
}

// GetTradesByOrder returns the fills of one order in time order.
func (s *Storage) GetTradesByOrder(vtOrderID string) ([]*domain.TradeData, error) {
	var recs []TradeRecord
	if err := s.db.Where("vt_order_id = ?", vtOrderID).Order("datetime").Find(&recs).Error; err != nil {
		return nil, err
	}
	out := make([]*domain.TradeData, 0, len(recs))
	for i := range recs {
		t, err := recs[i].toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

// CountTrades returns the number of journaled fills.
func (s *Storage) CountTrades() (int64, error) {
	var n int64
	err := s.db.Model(&TradeRecord{}).Count(&n).Error
	return n, err
}

func (r *TradeRecord) toDomain() (*domain.TradeData, error) {
	price, err := decimal.NewFromString(r.Price)
	if err != nil {
		return nil, fmt.Errorf("trade %s price: %w", r.VtTradeID, err)
	}
	volume, err := decimal.NewFromString(r.Volume)
	if err != nil {
		return nil, fmt.Errorf("trade %s volume: %w", r.VtTradeID, err)
	}
	return &domain.TradeData{
		Symbol:      r.Symbol,
		Exchange:    domain.Exchange(r.Exchange),
		OrderID:     r.OrderID(),
		TradeID:     r.TradeID,
		Direction:   domain.Direction(r.Direction),
		Offset:      domain.Offset(r.Offset),
		Price:       price,
		Volume:      volume,
		Datetime:    r.Datetime,
		AdapterName: r.AdapterName,
	}, nil
}

// OrderID returns the local order id part of VtOrderID.
func (r *TradeRecord) OrderID() string {
	id, _ := domain.SplitKey(r.VtOrderID)
	return id
}
