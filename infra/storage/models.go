package storage

// OrderRecord is one order state change. An order appears once per
// command that created or modified it.
type OrderRecord struct {
	ID        uint   `gorm:"primaryKey"`
	Seq       uint64 `gorm:"index"`
	AtNano    int64  `gorm:"column:at_ns;index"`
	OrderID   uint64 `gorm:"index"`
	Owner     string `gorm:"index"`
	Side      string
	Kind      string
	Status    string
	Price     int64
	Size      int64
	Requested int64
	Filled    int64
}

// ExecutionRecord is one fill. Price history folds these in
// (at_ns, seq) order.
type ExecutionRecord struct {
	ID         uint   `gorm:"primaryKey"`
	Seq        uint64 `gorm:"index:idx_exec_time,priority:2"`
	AtNano     int64  `gorm:"column:at_ns;index:idx_exec_time,priority:1"`
	MakerID    uint64
	TakerID    uint64
	MakerOwner string
	TakerOwner string
	TakerSide  string
	Price      int64
	Size       int64
}
