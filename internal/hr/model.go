// Package hr covers employees, daily attendance, and monthly payroll.
// A payroll record walks draft to approved to paid; only the paid
// transition touches money, booking one idempotent salary expense.
package hr

import "time"

// PayrollStatus is the lifecycle state of a payroll record.
type PayrollStatus string

const (
	PayrollDraft    PayrollStatus = "draft"
	PayrollApproved PayrollStatus = "approved"
	PayrollPaid     PayrollStatus = "paid"
)

// IsValid reports whether s is a known payroll status.
func (s PayrollStatus) IsValid() bool {
	switch s {
	case PayrollDraft, PayrollApproved, PayrollPaid:
		return true
	}
	return false
}

// CanEdit reports whether the amounts may still change.
func (s PayrollStatus) CanEdit() bool {
	return s == PayrollDraft
}

// CanApprove reports whether the record may be approved.
func (s PayrollStatus) CanApprove() bool {
	return s == PayrollDraft
}

// CanPay reports whether the record may be paid out.
func (s PayrollStatus) CanPay() bool {
	return s == PayrollApproved
}

// Attendance day statuses.
const (
	AttendancePresent = "present"
	AttendanceSick    = "sick"
	AttendanceLeave   = "leave"
	AttendanceAbsent  = "absent"
)

// Employee is a person on the tenant's payroll.
type Employee struct {
	ID         int64      `json:"id"`
	Name       string     `json:"name"`
	Position   string     `json:"position,omitempty"`
	Phone      string     `json:"phone,omitempty"`
	BaseSalary float64    `json:"baseSalary"`
	IsActive   bool       `json:"isActive"`
	JoinedAt   *time.Time `json:"joinedAt,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`
}

// Attendance is one employee's record for one work day. Re-marking the
// same day replaces the earlier record.
type Attendance struct {
	ID           int64      `json:"id"`
	EmployeeID   int64      `json:"employeeId"`
	EmployeeName string     `json:"employeeName,omitempty"`
	WorkDate     time.Time  `json:"workDate"`
	Status       string     `json:"status"`
	CheckIn      *time.Time `json:"checkIn,omitempty"`
	CheckOut     *time.Time `json:"checkOut,omitempty"`
	Note         string     `json:"note,omitempty"`
}

// Payroll is one employee's pay for one calendar month. Period uses the
// YYYY-MM form and is unique per employee.
type Payroll struct {
	ID            int64         `json:"id"`
	EmployeeID    int64         `json:"employeeId"`
	EmployeeName  string        `json:"employeeName,omitempty"`
	Period        string        `json:"period"`
	BaseSalary    float64       `json:"baseSalary"`
	Allowance     float64       `json:"allowance"`
	Deduction     float64       `json:"deduction"`
	NetPay        float64       `json:"netPay"`
	Status        PayrollStatus `json:"status"`
	PaymentMethod string        `json:"paymentMethod"`
	PaidAt        *time.Time    `json:"paidAt,omitempty"`
	CreatedAt     time.Time     `json:"createdAt"`
	UpdatedAt     time.Time     `json:"updatedAt"`
}
