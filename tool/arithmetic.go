package tool

import (
	"context"
	"errors"
)

const (
	NameSum        = "calculate_sum"
	NameDifference = "calculate_difference"
	NameProduct    = "calculate_product"
	NameQuotient   = "calculate_quotient"
)

var ErrEmptyValues = errors.New("values must contain at least one number")

const msgDivisionByZero = "Division by zero is not allowed"

// Result is the payload returned to the agent by the arithmetic tools.
// Domain errors such as a zero divisor are reported in Error, not as a Go
// error.
type Result struct {
	Result *float64 `json:"result,omitempty"`
	Error  string   `json:"error,omitempty"`
}

func resultOf(v float64) Result { return Result{Result: &v} }

type valuesInput struct {
	Values []float64 `json:"values"`
}

type quotientInput struct {
	Dividend float64 `json:"dividend"`
	Divisor  float64 `json:"divisor"`
}

func Sum(values []float64) float64 {
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum
}

// Difference subtracts left to right. There is no identity element, so an
// empty input is rejected.
func Difference(values []float64) (float64, error) {
	if len(values) == 0 {
		return 0, ErrEmptyValues
	}
	diff := values[0]
	for _, v := range values[1:] {
		diff -= v
	}
	return diff, nil
}

func Product(values []float64) float64 {
	product := 1.0
	for _, v := range values {
		product *= v
	}
	return product
}

func Quotient(dividend, divisor float64) Result {
	if divisor == 0 {
		return Result{Error: msgDivisionByZero}
	}
	return resultOf(dividend / divisor)
}

func valuesParameters(description, itemDescription string) Parameters {
	return Parameters{
		Type: "object",
		Properties: Properties{
			"values": {
				Type:        "array",
				Description: description,
				Items:       &Property{Type: "number", Description: itemDescription},
			},
		},
		Required: []string{"values"},
	}
}

// Arithmetic returns the calculator tools advertised to the agent.
func Arithmetic() []Definition {
	return []Definition{
		{
			Tool: Tool{
				Type:        TypeFunction,
				Name:        NameSum,
				Description: `Calculates the sum of numbers. Use this tool when the user asks to add multiple numbers together, such as "What is the sum of 10 and 20?" or "Add 10, 20, and 30."`,
				Parameters:  valuesParameters("Array of numbers to be summed, e.g., [10, 20, 30]", "A numeric value to be added"),
			},
			Handler: Func(func(_ context.Context, in valuesInput) (any, error) {
				return resultOf(Sum(in.Values)), nil
			}),
		},
		{
			Tool: Tool{
				Type:        TypeFunction,
				Name:        NameDifference,
				Description: `Calculates the difference between numbers. Use this function when the user wants to subtract numbers, e.g., "100 minus 10", "subtract 10 from 100", or "what is 100 - 10?"`,
				Parameters:  valuesParameters("Array of numbers to subtract sequentially, e.g., [100, 10]", "A numeric value"),
			},
			Handler: Func(func(_ context.Context, in valuesInput) (any, error) {
				diff, err := Difference(in.Values)
				if err != nil {
					return nil, err
				}
				return resultOf(diff), nil
			}),
		},
		{
			Tool: Tool{
				Type:        TypeFunction,
				Name:        NameProduct,
				Description: `Calculates the product of numbers. Use this tool when the user asks to multiply numbers together, such as "What is 5 times 3?", "Multiply 2, 3, and 4", or "What is the product of 6 and 7?"`,
				Parameters:  valuesParameters("Array of numbers to be multiplied, e.g., [5, 3, 2]", "A numeric value to be multiplied"),
			},
			Handler: Func(func(_ context.Context, in valuesInput) (any, error) {
				return resultOf(Product(in.Values)), nil
			}),
		},
		{
			Tool: Tool{
				Type:        TypeFunction,
				Name:        NameQuotient,
				Description: `Calculates the quotient of two numbers. Use this tool when the user asks to divide one number by another, such as "What is 100 divided by 5?", "Divide 50 by 2", or "What is the quotient of 20 and 4?". This tool checks for division by zero.`,
				Parameters: Parameters{
					Type: "object",
					Properties: Properties{
						"dividend": {Type: "number", Description: "The number to be divided (the dividend)"},
						"divisor":  {Type: "number", Description: "The number to divide by (the divisor)"},
					},
					Required: []string{"dividend", "divisor"},
				},
			},
			Handler: Func(func(_ context.Context, in quotientInput) (any, error) {
				return Quotient(in.Dividend, in.Divisor), nil
			}),
		},
	}
}
