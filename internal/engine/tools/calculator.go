// internal/engine/tools/calculator.go
package tools

import (
	"context"
	"encoding/json"
	"fmt"
)

// Calculator performs basic arithmetic on two operands.
type Calculator struct{}

// NewCalculator creates the calculator tool.
func NewCalculator() *Calculator { return &Calculator{} }

func (c *Calculator) Name() string { return "calculator" }
func (c *Calculator) Description() string {
	return "Perform basic arithmetic (add, sub, mul, div) on two numbers"
}

func (c *Calculator) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"first_num": {"type": "number", "description": "First operand"},
			"second_num": {"type": "number", "description": "Second operand"},
			"operation": {"type": "string", "enum": ["add", "sub", "mul", "div"], "description": "Operation to perform"}
		},
		"required": ["first_num", "second_num", "operation"]
	}`)
}

func (c *Calculator) Execute(_ context.Context, args json.RawMessage) (string, error) {
	var params struct {
		FirstNum  float64 `json:"first_num"`
		SecondNum float64 `json:"second_num"`
		Operation string  `json:"operation"`
	}
	if err := json.Unmarshal(args, &params); err != nil {
		return "", fmt.Errorf("parse args: %w", err)
	}

	var result float64
	switch params.Operation {
	case "add":
		result = params.FirstNum + params.SecondNum
	case "sub":
		result = params.FirstNum - params.SecondNum
	case "mul":
		result = params.FirstNum * params.SecondNum
	case "div":
		if params.SecondNum == 0 {
			return jsonError("Division by zero is not allowed"), nil
		}
		result = params.FirstNum / params.SecondNum
	default:
		return jsonError(fmt.Sprintf("Unsupported operation: %s", params.Operation)), nil
	}
	return jsonResult(result), nil
}

// PercentageCalc applies a percentage increase or decrease to a value.
type PercentageCalc struct{}

// NewPercentageCalc creates the percentage calculator tool.
func NewPercentageCalc() *PercentageCalc { return &PercentageCalc{} }

func (p *PercentageCalc) Name() string { return "percentage_calc" }
func (p *PercentageCalc) Description() string {
	return "Increase or decrease a value by a percentage"
}

func (p *PercentageCalc) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"value": {"type": "number", "description": "Base value"},
			"percent": {"type": "number", "description": "Percentage to apply"},
			"operation": {"type": "string", "enum": ["increase", "decrease"], "description": "Direction of change"}
		},
		"required": ["value", "percent", "operation"]
	}`)
}

func (p *PercentageCalc) Execute(_ context.Context, args json.RawMessage) (string, error) {
	var params struct {
		Value     float64 `json:"value"`
		Percent   float64 `json:"percent"`
		Operation string  `json:"operation"`
	}
	if err := json.Unmarshal(args, &params); err != nil {
		return "", fmt.Errorf("parse args: %w", err)
	}

	multiplier := 1 + params.Percent/100
	if params.Operation == "decrease" {
		multiplier = 1 - params.Percent/100
	} else if params.Operation != "increase" {
		return jsonError(fmt.Sprintf("Unsupported operation: %s", params.Operation)), nil
	}
	return jsonResult(params.Value * multiplier), nil
}

func jsonResult(v float64) string {
	data, _ := json.Marshal(map[string]float64{"result": v})
	return string(data)
}

func jsonError(msg string) string {
	data, _ := json.Marshal(map[string]string{"error": msg})
	return string(data)
}
