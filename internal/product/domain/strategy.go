package domain

import (
	"strings"

	"github.com/dmehra2102/Reservation-Pricing-Service/pkg/apperror"
	"github.com/dmehra2102/Reservation-Pricing-Service/pkg/money"
)

type PricingType string

const (
	// OneTime charges a flat fee regardless of quantity.
	OneTime PricingType = "ONE_TIME"
	// SimpleStock charges unit price × quantity.
	SimpleStock PricingType = "SIMPLE_STOCK"
	// InitialPlusAdditional charges the first unit at InitialPrice and each further unit at AdditionalPrice.
	InitialPlusAdditional PricingType = "INITIAL_PLUS_ADDITIONAL"
)

func ParsePricingType(s string) (PricingType, error) {
	switch t := PricingType(strings.ToUpper(strings.TrimSpace(s))); t {
	case OneTime, SimpleStock, InitialPlusAdditional:
		return t, nil
	}
	return "", apperror.Validation("product.ParsePricingType", "unknown pricing type %q", s)
}

type PricingStrategy struct {
	Type            PricingType
	InitialPrice    money.Money
	AdditionalPrice *money.Money
}

func NewPricingStrategy(t PricingType, initial money.Money, additional *money.Money) (PricingStrategy, error) {
	const op = "product.NewPricingStrategy"
	switch t {
	case OneTime, SimpleStock:
		if additional != nil {
			return PricingStrategy{}, apperror.Validation(op, "%s does not take an additional price", t)
		}
	case InitialPlusAdditional:
		if additional == nil {
			return PricingStrategy{}, apperror.Validation(op, "%s requires an additional price", t)
		}
	default:
		return PricingStrategy{}, apperror.Validation(op, "unknown pricing type %q", t)
	}
	return PricingStrategy{Type: t, InitialPrice: initial, AdditionalPrice: additional}, nil
}

func (s PricingStrategy) Calculate(quantity int) (money.Money, error) {
	if quantity <= 0 {
		return money.Zero, apperror.Validation("product.Calculate", "quantity must be positive, got %d", quantity)
	}
	switch s.Type {
	case OneTime:
		return s.InitialPrice, nil
	case SimpleStock:
		return s.InitialPrice.Multiply(quantity)
	case InitialPlusAdditional:
		if s.AdditionalPrice == nil {
			return money.Zero, apperror.Validation("product.Calculate", "%s without additional price", s.Type)
		}
		extra, err := s.AdditionalPrice.Multiply(quantity - 1)
		if err != nil {
			return money.Zero, err
		}
		return s.InitialPrice.Add(extra), nil
	}
	return money.Zero, apperror.Validation("product.Calculate", "unknown pricing type %q", s.Type)
}
