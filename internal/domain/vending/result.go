package vending

// Status classifies the outcome of a purchase or refill.
type Status string

const (
	StatusOK                   Status = "ok"
	StatusDrinkNotFound        Status = "drink_not_found"
	StatusOutOfStock           Status = "out_of_stock"
	StatusInsufficientPayment  Status = "insufficient_payment"
	StatusInsufficientChange   Status = "insufficient_change"
	StatusAboveRefillThreshold Status = "above_refill_threshold"
	StatusPaymentTooLarge      Status = "payment_too_large"
)

const (
	msgDrinkNotFound   = "Drink not found."
	msgPaymentTooLarge = "Payment is too large to accept."
)

// Payment is the tender handed to BuyDrink. Coins+Cash is expected to equal
// Total; the engine does not re-check the sum.
type Payment struct {
	Total int
	Coins int
	Cash  int
}

// PurchaseResult is returned for every purchase attempt, successful or not.
// On rejection Change equals the full payment and PurchasedDrink is nil.
// On success PurchasedDrink carries the quantity as it was before the sale.
type PurchaseResult struct {
	Status         Status `json:"-"`
	Success        bool   `json:"success"`
	Message        string `json:"message"`
	Change         int    `json:"change"`
	PurchasedDrink *Drink `json:"purchasedDrink,omitempty"`
}

// RefillResult is returned for every refill attempt. NewQuantity is only set
// on success.
type RefillResult struct {
	Status      Status `json:"-"`
	Success     bool   `json:"success"`
	Message     string `json:"message"`
	NewQuantity *int   `json:"newQuantity,omitempty"`
}

// Inventory is a detached copy of the machine state.
type Inventory struct {
	Drinks []Drink `json:"drinks"`
	Coins  int     `json:"coins"`
	Cash   int     `json:"cash"`
}

// Drink returns the snapshot entry for slot.
func (inv Inventory) Drink(slot Slot) (Drink, bool) {
	for _, d := range inv.Drinks {
		if d.Slot == slot {
			return d, true
		}
	}
	return Drink{}, false
}

func rejectPurchase(status Status, message string, payment Payment) PurchaseResult {
	return PurchaseResult{
		Status:  status,
		Success: false,
		Message: message,
		Change:  payment.Total,
	}
}

func rejectRefill(status Status, message string) RefillResult {
	return RefillResult{
		Status:  status,
		Success: false,
		Message: message,
	}
}
