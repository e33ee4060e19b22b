package enums

import "fmt"

// VoucherStatus gates whether a voucher may be redeemed at all.
type VoucherStatus string

const (
	VoucherStatusActive   VoucherStatus = "active"
	VoucherStatusDisabled VoucherStatus = "disabled"
)

var validVoucherStatuses = []VoucherStatus{
	VoucherStatusActive,
	VoucherStatusDisabled,
}

func (v VoucherStatus) String() string {
	return string(v)
}

func (v VoucherStatus) IsValid() bool {
	for _, candidate := range validVoucherStatuses {
		if candidate == v {
			return true
		}
	}
	return false
}

// ParseVoucherStatus converts raw input into a VoucherStatus.
func ParseVoucherStatus(value string) (VoucherStatus, error) {
	for _, candidate := range validVoucherStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid voucher status %q", value)
}

// VoucherType selects how the discount amount is computed.
type VoucherType string

const (
	VoucherTypeFixedAmount VoucherType = "fixed_amount"
	VoucherTypePercentage  VoucherType = "percentage"
)

var validVoucherTypes = []VoucherType{
	VoucherTypeFixedAmount,
	VoucherTypePercentage,
}

func (v VoucherType) String() string {
	return string(v)
}

func (v VoucherType) IsValid() bool {
	for _, candidate := range validVoucherTypes {
		if candidate == v {
			return true
		}
	}
	return false
}

// ParseVoucherType converts raw input into a VoucherType.
func ParseVoucherType(value string) (VoucherType, error) {
	for _, candidate := range validVoucherTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid voucher type %q", value)
}

// ConditionOperator compares a voucher condition field against its value.
type ConditionOperator string

const (
	ConditionOpEq  ConditionOperator = "eq"
	ConditionOpNeq ConditionOperator = "neq"
	ConditionOpGt  ConditionOperator = "gt"
	ConditionOpGte ConditionOperator = "gte"
	ConditionOpLt  ConditionOperator = "lt"
	ConditionOpLte ConditionOperator = "lte"
)

var validConditionOperators = []ConditionOperator{
	ConditionOpEq,
	ConditionOpNeq,
	ConditionOpGt,
	ConditionOpGte,
	ConditionOpLt,
	ConditionOpLte,
}

func (c ConditionOperator) String() string {
	return string(c)
}

func (c ConditionOperator) IsValid() bool {
	for _, candidate := range validConditionOperators {
		if candidate == c {
			return true
		}
	}
	return false
}

// ParseConditionOperator converts raw input into a ConditionOperator.
func ParseConditionOperator(value string) (ConditionOperator, error) {
	for _, candidate := range validConditionOperators {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid condition operator %q", value)
}
