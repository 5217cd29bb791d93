// Package schema holds the per-action field contracts and budget bands.
package schema

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ppiankov/intentguard/internal/model"
)

// Schema is the required/optional field contract for one action type.
type Schema struct {
	Required []string          `yaml:"required" json:"required"`
	Optional []string          `yaml:"optional" json:"optional"`
	Budget   model.BudgetRange `yaml:"budget_range" json:"budget_range"`
}

// Registry maps action types to schemas. It is read-only once built.
type Registry struct {
	schemas map[model.ActionType]Schema
}

func defaultSchemas() map[model.ActionType]Schema {
	return map[model.ActionType]Schema{
		model.BookFlight: {
			Required: []string{"origin", "destination", "date", "website", "price"},
			Optional: []string{"airline", "class", "flight_number", "time"},
			Budget:   model.BudgetRange{Low: 100, Medium: 300, High: 800, Currency: "USD"},
		},
		model.BookTrain: {
			Required: []string{"origin", "destination", "date", "time", "website", "price"},
			Optional: []string{"train_number", "class", "seat_type"},
			Budget:   model.BudgetRange{Low: 20, Medium: 80, High: 200, Currency: "USD"},
		},
		model.BookHotel: {
			Required: []string{"hotel_name", "location", "check_in", "check_out", "website", "price"},
			Optional: []string{"room_type", "rating", "amenities", "guests"},
			Budget:   model.BudgetRange{Low: 50, Medium: 150, High: 400, Currency: "USD per night"},
		},
		model.BookRestaurant: {
			Required: []string{"restaurant_name", "location", "date", "time", "website", "price"},
			Optional: []string{"cuisine", "party_size", "reservation_id"},
			Budget:   model.BudgetRange{Low: 15, Medium: 50, High: 150, Currency: "USD per person"},
		},
		model.BookAttraction: {
			Required: []string{"attraction_name", "location", "date", "time", "website", "price"},
			Optional: []string{"ticket_type", "duration"},
			Budget:   model.BudgetRange{Low: 10, Medium: 40, High: 100, Currency: "USD"},
		},
		model.BookTransport: {
			Required: []string{"transport_type", "from_location", "to_location", "date", "time", "price"},
			Optional: []string{"service_name", "vehicle_type"},
			Budget:   model.BudgetRange{Low: 10, Medium: 30, High: 80, Currency: "USD"},
		},
		model.MakePayment: {
			Required: []string{"amount", "merchant", "payment_method", "date", "time"},
			Optional: []string{"currency", "description"},
			Budget:   model.BudgetRange{Low: 0, Medium: 100, High: 500, Currency: "USD"},
		},
		model.GeneralAction: {
			Budget: model.BudgetRange{Currency: "USD"},
		},
	}
}

// Default returns the built-in registry.
func Default() *Registry {
	return &Registry{schemas: defaultSchemas()}
}

// Load returns the built-in registry with per-action overrides from a YAML
// file applied on top. A missing file yields the defaults.
//
// The file maps action names to schemas:
//
//	BOOK_HOTEL:
//	  required: [hotel_name, location, check_in, check_out, website, price]
//	  budget_range: {low: 2000, medium: 6000, high: 15000, currency: INR per night}
func Load(path string) (*Registry, error) {
	r := Default()
	if path == "" {
		return r, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return r, nil
		}
		return nil, fmt.Errorf("schema: read %s: %w", path, err)
	}

	var overrides map[string]Schema
	if err := yaml.Unmarshal(data, &overrides); err != nil {
		return nil, fmt.Errorf("schema: parse %s: %w", path, err)
	}
	for name, s := range overrides {
		action := model.ActionType(strings.ToUpper(name))
		if _, ok := r.schemas[action]; !ok {
			return nil, fmt.Errorf("schema: unknown action type %q", name)
		}
		r.schemas[action] = s
	}
	return r, nil
}

// Lookup returns the schema for an action. Unknown actions get the
// empty GENERAL_ACTION contract.
func (r *Registry) Lookup(action model.ActionType) Schema {
	if s, ok := r.schemas[action]; ok {
		return s
	}
	return r.schemas[model.GeneralAction]
}

// BudgetDisplay formats the typical budget band for an action.
func (r *Registry) BudgetDisplay(action model.ActionType) string {
	b := r.Lookup(action).Budget
	return fmt.Sprintf("Typical Budget: Low: $%g | Medium: $%g | High: $%g %s", b.Low, b.Medium, b.High, b.Currency)
}

// Totals sums the budget bands carried by tokens.
func Totals(tokens []model.IntentToken) model.BudgetRange {
	total := model.BudgetRange{Currency: "USD"}
	for _, t := range tokens {
		total.Low += t.Budget.Low
		total.Medium += t.Budget.Medium
		total.High += t.Budget.High
	}
	return total
}

// DefaultYAML renders the built-in schemas in the format Load accepts.
func DefaultYAML() (string, error) {
	out := make(map[string]Schema)
	for action, s := range defaultSchemas() {
		if action == model.GeneralAction {
			continue
		}
		out[string(action)] = s
	}
	data, err := yaml.Marshal(out)
	if err != nil {
		return "", fmt.Errorf("schema: marshal defaults: %w", err)
	}
	header := "# intentguard intent schemas\n" +
		"# Each entry replaces the built-in contract for that action type.\n" +
		"# Delete the entries you do not want to override.\n\n"
	return header + string(data), nil
}
