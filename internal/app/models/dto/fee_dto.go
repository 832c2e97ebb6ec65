package dto

import (
	"time"

	"github.com/sga/schoolhub/internal/app/models"
)

// FeeStructureRequest creates or updates a fee structure
type FeeStructureRequest struct {
	BatchID     *int64              `json:"batchId,omitempty" binding:"omitempty,min=1"`
	Name        string              `json:"name" binding:"required,max=100"`
	Amount      float64             `json:"amount" binding:"required,gt=0"`
	Frequency   models.FeeFrequency `json:"frequency" binding:"omitempty,fee_frequency"`
	Description *string             `json:"description,omitempty"`
	IsActive    *bool               `json:"isActive,omitempty"`
}

// CollectFeeRequest records a payment and issues a receipt
type CollectFeeRequest struct {
	StudentID            int64              `json:"studentId" binding:"required,min=1"`
	FeeStructureID       *int64             `json:"feeStructureId,omitempty" binding:"omitempty,min=1"`
	Amount               float64            `json:"amount" binding:"required,gt=0"`
	PaymentDate          string             `json:"paymentDate,omitempty" binding:"omitempty,datetime=2006-01-02"`
	PaymentMode          models.PaymentMode `json:"paymentMode" binding:"required,payment_mode"`
	ChequeNumber         *string            `json:"chequeNumber,omitempty" binding:"omitempty,max=50"`
	ChequeDate           string             `json:"chequeDate,omitempty" binding:"omitempty,datetime=2006-01-02"`
	BankName             *string            `json:"bankName,omitempty" binding:"omitempty,max=100"`
	TransactionReference *string            `json:"transactionReference,omitempty" binding:"omitempty,max=100"`
	Description          *string            `json:"description,omitempty"`
	MonthFor             *string            `json:"monthFor,omitempty" binding:"omitempty,max=20"`
	Discount             float64            `json:"discount" binding:"gte=0"`
	Fine                 float64            `json:"fine" binding:"gte=0"`
}

// TransactionListResponse is a page of transactions with the page sum
type TransactionListResponse struct {
	Transactions []*models.FeeTransaction `json:"transactions"`
	PageTotal    float64                  `json:"pageTotal"`
	Pagination   PaginationInfo           `json:"pagination"`
}

// FeeStatusResponse describes where a student is in the payment window
type FeeStatusResponse struct {
	StudentID       int64      `json:"studentId"`
	LastPaymentDate *time.Time `json:"lastPaymentDate,omitempty"`
	ReferenceDate   time.Time  `json:"referenceDate"`
	DaysLeft        int        `json:"daysLeft"`
	IsOverdue       bool       `json:"isOverdue"`
	OverdueDays     int        `json:"overdueDays"`
}

// StudentFeeDetails is the derived fee position of one student
type StudentFeeDetails struct {
	Student      *models.Student          `json:"student"`
	FeeStructure *models.FeeStructure     `json:"feeStructure,omitempty"`
	Transactions []*models.FeeTransaction `json:"transactions"`
	TotalPaid    float64                  `json:"totalPaid"`
	Expected     float64                  `json:"expected"`
	Pending      float64                  `json:"pending"`
}

// ModeTotal is the collection for one payment mode
type ModeTotal struct {
	Mode  models.PaymentMode `json:"mode"`
	Total float64            `json:"total"`
	Count int                `json:"count"`
}

// DailyTotal is the collection for one day
type DailyTotal struct {
	Date  time.Time `json:"date"`
	Total float64   `json:"total"`
}

// CollectionReport aggregates a month of transactions
type CollectionReport struct {
	Year         int                      `json:"year"`
	Month        int                      `json:"month"`
	Total        float64                  `json:"total"`
	Count        int                      `json:"count"`
	ByMode       []ModeTotal              `json:"byMode"`
	Daily        []DailyTotal             `json:"daily"`
	Transactions []*models.FeeTransaction `json:"transactions"`
}

// FeeSummary is the collection dashboard
type FeeSummary struct {
	Date            time.Time `json:"date"`
	TodayCollection float64   `json:"todayCollection"`
	MonthCollection float64   `json:"monthCollection"`
	OutstandingDues float64   `json:"outstandingDues"`
}

// CreateFeeDueRequest schedules an explicit due
type CreateFeeDueRequest struct {
	StudentID      int64   `json:"studentId" binding:"required,min=1"`
	FeeStructureID *int64  `json:"feeStructureId,omitempty" binding:"omitempty,min=1"`
	Amount         float64 `json:"amount" binding:"required,gt=0"`
	DueDate        string  `json:"dueDate" binding:"required,datetime=2006-01-02"`
}

// DuePaymentRequest records a payment against a due
type DuePaymentRequest struct {
	Amount float64 `json:"amount" binding:"required,gt=0"`
}

// RefreshOverdueResponse reports how many dues became overdue
type RefreshOverdueResponse struct {
	Updated int64 `json:"updated"`
}

// PortalFeesResponse is a student's own payment history
type PortalFeesResponse struct {
	Transactions []*models.FeeTransaction `json:"transactions"`
	TotalPaid    float64                  `json:"totalPaid"`
	Status       *FeeStatusResponse       `json:"status,omitempty"`
}
