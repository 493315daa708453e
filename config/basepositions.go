package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/sentryops/operation/opmodel"
)

type basePositionsDocument struct {
	BasePositions []struct {
		X float64 `json:"x"`
		Y float64 `json:"y"`
	} `json:"base_positions"`
}

// LoadBasePositions reads an operation's base station positions from a JSON
// file shaped {"base_positions": [{"x":..,"y":..}, ...]}, one entry per
// mission, in launch order.
func LoadBasePositions(path string) ([]opmodel.BasePosition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read base positions: %w", err)
	}
	var doc basePositionsDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse base positions: %w", err)
	}
	if len(doc.BasePositions) == 0 {
		return nil, fmt.Errorf("base positions file %s defines no missions", path)
	}
	out := make([]opmodel.BasePosition, len(doc.BasePositions))
	for i, p := range doc.BasePositions {
		out[i] = opmodel.BasePosition{X: p.X, Y: p.Y}
	}
	return out, nil
}
