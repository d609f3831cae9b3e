package domain

// StockStatus is the canonical stock enum free-text stock phrases map to.
type StockStatus string

const (
	StockInStock      StockStatus = "IN_STOCK"
	StockOutOfStock   StockStatus = "OUT_OF_STOCK"
	StockLimited      StockStatus = "LIMITED_STOCK"
	StockPreOrder     StockStatus = "PRE_ORDER"
	StockDiscontinued StockStatus = "DISCONTINUED"
	StockUnknown      StockStatus = "UNKNOWN"
)

// Available reports whether the product can currently be bought.
func (s StockStatus) Available() bool {
	return s == StockInStock || s == StockLimited
}
