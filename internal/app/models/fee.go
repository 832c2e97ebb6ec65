package models

import "time"

// FeeFrequency describes how often a fee structure is charged
type FeeFrequency string

const (
	FrequencyMonthly   FeeFrequency = "MONTHLY"
	FrequencyQuarterly FeeFrequency = "QUARTERLY"
	FrequencyYearly    FeeFrequency = "YEARLY"
	FrequencyOneTime   FeeFrequency = "ONE_TIME"
)

func (f FeeFrequency) Valid() bool {
	switch f {
	case FrequencyMonthly, FrequencyQuarterly, FrequencyYearly, FrequencyOneTime:
		return true
	}
	return false
}

// PaymentMode is how a fee was paid
type PaymentMode string

const (
	PaymentCash         PaymentMode = "CASH"
	PaymentCheque       PaymentMode = "CHEQUE"
	PaymentUPI          PaymentMode = "UPI"
	PaymentCard         PaymentMode = "CARD"
	PaymentBankTransfer PaymentMode = "BANK_TRANSFER"
)

// PaymentModes in display order
var PaymentModes = []PaymentMode{PaymentCash, PaymentCheque, PaymentUPI, PaymentCard, PaymentBankTransfer}

func (m PaymentMode) Valid() bool {
	switch m {
	case PaymentCash, PaymentCheque, PaymentUPI, PaymentCard, PaymentBankTransfer:
		return true
	}
	return false
}

// TakesReference is true for electronic modes that carry a transaction reference.
func (m PaymentMode) TakesReference() bool {
	return m == PaymentUPI || m == PaymentCard || m == PaymentBankTransfer
}

// FeeStructure is a named recurring or one-time charge, optionally scoped to a batch
type FeeStructure struct {
	ID          int64        `json:"id" db:"id"`
	BatchID     *int64       `json:"batchId,omitempty" db:"batch_id"`
	Name        string       `json:"name" db:"name"`
	Amount      float64      `json:"amount" db:"amount"`
	Frequency   FeeFrequency `json:"frequency" db:"frequency"`
	Description *string      `json:"description,omitempty" db:"description"`
	IsActive    bool         `json:"isActive" db:"is_active"`
	CreatedAt   time.Time    `json:"createdAt" db:"created_at"`
	UpdatedAt   time.Time    `json:"updatedAt" db:"updated_at"`
}

// FeeTransaction is an immutable payment record
type FeeTransaction struct {
	ID                   int64       `json:"id" db:"id"`
	ReceiptNumber        string      `json:"receiptNumber" db:"receipt_number"`
	StudentID            int64       `json:"studentId" db:"student_id"`
	FeeStructureID       *int64      `json:"feeStructureId,omitempty" db:"fee_structure_id"`
	Amount               float64     `json:"amount" db:"amount"`
	PaymentDate          time.Time   `json:"paymentDate" db:"payment_date"`
	PaymentMode          PaymentMode `json:"paymentMode" db:"payment_mode"`
	ChequeNumber         *string     `json:"chequeNumber,omitempty" db:"cheque_number"`
	ChequeDate           *time.Time  `json:"chequeDate,omitempty" db:"cheque_date"`
	BankName             *string     `json:"bankName,omitempty" db:"bank_name"`
	TransactionReference *string     `json:"transactionReference,omitempty" db:"transaction_reference"`
	Description          *string     `json:"description,omitempty" db:"description"`
	MonthFor             *string     `json:"monthFor,omitempty" db:"month_for"`
	Discount             float64     `json:"discount" db:"discount"`
	Fine                 float64     `json:"fine" db:"fine"`
	CollectedBy          *int64      `json:"collectedBy,omitempty" db:"collected_by"`
	CreatedAt            time.Time   `json:"createdAt" db:"created_at"`
}

// NetAmount is amount - discount + fine
func (t *FeeTransaction) NetAmount() float64 {
	return t.Amount - t.Discount + t.Fine
}

// FeeDueStatus is the lifecycle state of a scheduled due
type FeeDueStatus string

const (
	DuePending FeeDueStatus = "PENDING"
	DuePartial FeeDueStatus = "PARTIAL"
	DuePaid    FeeDueStatus = "PAID"
	DueOverdue FeeDueStatus = "OVERDUE"
)

// FeeDue is an explicit scheduled obligation. It is tracked separately from the
// derived pending amount computed from enrollment months.
type FeeDue struct {
	ID             int64        `json:"id" db:"id"`
	StudentID      int64        `json:"studentId" db:"student_id"`
	FeeStructureID *int64       `json:"feeStructureId,omitempty" db:"fee_structure_id"`
	Amount         float64      `json:"amount" db:"amount"`
	DueDate        time.Time    `json:"dueDate" db:"due_date"`
	PaidAmount     float64      `json:"paidAmount" db:"paid_amount"`
	Status         FeeDueStatus `json:"status" db:"status"`
	CreatedAt      time.Time    `json:"createdAt" db:"created_at"`
	UpdatedAt      time.Time    `json:"updatedAt" db:"updated_at"`
}

// Balance is what remains unpaid on the due
func (d *FeeDue) Balance() float64 {
	if b := d.Amount - d.PaidAmount; b > 0 {
		return b
	}
	return 0
}

// ApplyPayment adds amount to PaidAmount, capped at Amount, and moves the status
// to PARTIAL or PAID. It returns the portion actually applied.
func (d *FeeDue) ApplyPayment(amount float64) float64 {
	applied := amount
	if balance := d.Balance(); applied > balance {
		applied = balance
	}
	d.PaidAmount += applied
	switch {
	case d.PaidAmount >= d.Amount:
		d.PaidAmount = d.Amount
		d.Status = DuePaid
	case d.PaidAmount > 0 && d.Status != DueOverdue:
		d.Status = DuePartial
	}
	return applied
}

// TransactionFilter narrows fee transaction listings
type TransactionFilter struct {
	StudentID   *int64
	From        *time.Time
	To          *time.Time
	PaymentMode *PaymentMode
	Offset      uint64
	Limit       int
}

// PendingDue is the derived outstanding amount for one student
type PendingDue struct {
	Student       *Student `json:"student"`
	MonthlyFee    float64  `json:"monthlyFee"`
	Expected      float64  `json:"expected"`
	Paid          float64  `json:"paid"`
	Pending       float64  `json:"pending"`
	MonthsOverdue int      `json:"monthsOverdue"`
}
