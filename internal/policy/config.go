package policy

import (
	"crypto/sha256"
	_ "embed"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"

	"github.com/ppiankov/intentguard/internal/alert"
)

//go:embed schema.json
var schemaJSON string

// BudgetRules bounds the price/budget ratio.
type BudgetRules struct {
	BlockAbove    float64 `yaml:"block_above" json:"block_above"`
	ApprovalAbove float64 `yaml:"approval_above" json:"approval_above"`
	GroupCap      float64 `yaml:"group_cap" json:"group_cap"`
}

// HotelRules applies to BOOK_HOTEL tokens only.
type HotelRules struct {
	MaxGuests      int                `yaml:"max_guests" json:"max_guests"`
	MaxStayNights  int                `yaml:"max_stay_nights" json:"max_stay_nights"`
	CityMinimums   map[string]float64 `yaml:"city_minimums" json:"city_minimums"`
	DefaultMinimum float64            `yaml:"default_minimum" json:"default_minimum"`
}

// PaymentRules governs the direct bill-payment flow.
type PaymentRules struct {
	VerifiedMerchants []string `yaml:"verified_merchants" json:"verified_merchants"`
	MaxTransaction    float64  `yaml:"max_transaction" json:"max_transaction"`
	Currency          string   `yaml:"currency" json:"currency"`
}

// Config holds the policy rule tables. It is read-only once loaded.
type Config struct {
	RestrictedRegions []string       `yaml:"restricted_regions" json:"restricted_regions"`
	DomesticFlags     []string       `yaml:"domestic_flags" json:"domestic_flags"`
	DomesticCities    []string       `yaml:"domestic_cities" json:"domestic_cities"`
	AdvanceNoticeDays int            `yaml:"advance_notice_days" json:"advance_notice_days"`
	CurrencySymbol    string         `yaml:"currency_symbol" json:"currency_symbol"`
	Budget            BudgetRules    `yaml:"budget" json:"budget"`
	Hotel             HotelRules     `yaml:"hotel" json:"hotel"`
	Payments          PaymentRules   `yaml:"payments" json:"payments"`
	Alerts            []alert.Config `yaml:"alerts" json:"alerts"`
}

// DefaultConfig returns the built-in travel policy.
func DefaultConfig() *Config {
	return &Config{
		RestrictedRegions: []string{"syria", "north korea", "afghanistan", "crimea"},
		DomesticFlags:     []string{"domestic", "india"},
		DomesticCities:    []string{"delhi", "mumbai", "bangalore", "chennai", "kolkata"},
		AdvanceNoticeDays: 3,
		CurrencySymbol:    "₹",
		Budget: BudgetRules{
			BlockAbove:    1.1,
			ApprovalAbove: 1.0,
			GroupCap:      200000,
		},
		Hotel: HotelRules{
			MaxGuests:     4,
			MaxStayNights: 14,
			CityMinimums: map[string]float64{
				"paris":     3000,
				"london":    3500,
				"new york":  4000,
				"tokyo":     2500,
				"dubai":     2000,
				"singapore": 2500,
				"mumbai":    1500,
				"delhi":     1500,
				"bangalore": 1200,
			},
			DefaultMinimum: 1000,
		},
		Payments: PaymentRules{
			VerifiedMerchants: []string{"ELECTRICITY_BOARD", "WATER_UTILITY", "TELECOM_PROVIDER"},
			MaxTransaction:    5000,
			Currency:          "inr",
		},
	}
}

// DefaultConfigPath returns ~/.intentguard/policy.yaml.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".intentguard", "policy.yaml")
}

// LoadConfig loads policy configuration from a YAML file.
// Missing file returns DefaultConfig(). Empty path falls back to ~/.intentguard/policy.yaml.
func LoadConfig(path string) (*Config, error) {
	cfg, _, err := LoadConfigWithHash(path)
	return cfg, err
}

// LoadConfigWithHash loads policy configuration and returns its SHA-256 hash.
// The hash is computed over the raw YAML bytes on disk.
// When no file exists (defaults used), the hash is the SHA-256 of empty input.
func LoadConfigWithHash(path string) (*Config, string, error) {
	if path == "" {
		path = DefaultConfigPath()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if path == "" || os.IsNotExist(err) {
			return DefaultConfig(), hashBytes(nil), nil
		}
		return nil, "", fmt.Errorf("failed to read policy config: %w", err)
	}

	cfg, err := ParseConfig(data)
	if err != nil {
		return nil, "", err
	}
	return cfg, hashBytes(data), nil
}

// ParseConfig validates raw YAML against the policy schema and decodes it
// over DefaultConfig(), so unspecified fields keep their defaults.
func ParseConfig(data []byte) (*Config, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse policy config: %w", err)
	}
	if raw != nil {
		if err := ValidateSettings(raw); err != nil {
			return nil, err
		}
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse policy config: %w", err)
	}
	cfg.normalize()
	return cfg, nil
}

// ValidateSettings validates raw policy settings against the JSON schema.
func ValidateSettings(settings map[string]any) error {
	schemaLoader := gojsonschema.NewStringLoader(schemaJSON)
	documentLoader := gojsonschema.NewGoLoader(settings)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return fmt.Errorf("validate policy schema: %w", err)
	}
	if result.Valid() {
		return nil
	}

	errs := make([]string, 0, len(result.Errors()))
	for _, schemaErr := range result.Errors() {
		errs = append(errs, schemaErr.String())
	}
	sort.Strings(errs)

	return fmt.Errorf("policy schema validation failed: %s", strings.Join(errs, "; "))
}

// normalize lower-cases lookup tables so rule checks compare case-insensitively.
func (c *Config) normalize() {
	lowerAll := func(in []string) []string {
		out := make([]string, 0, len(in))
		for _, s := range in {
			out = append(out, strings.ToLower(strings.TrimSpace(s)))
		}
		return out
	}
	c.RestrictedRegions = lowerAll(c.RestrictedRegions)
	c.DomesticFlags = lowerAll(c.DomesticFlags)
	c.DomesticCities = lowerAll(c.DomesticCities)

	mins := make(map[string]float64, len(c.Hotel.CityMinimums))
	for k, v := range c.Hotel.CityMinimums {
		mins[strings.ToLower(strings.TrimSpace(k))] = v
	}
	c.Hotel.CityMinimums = mins

	merchants := make([]string, 0, len(c.Payments.VerifiedMerchants))
	for _, m := range c.Payments.VerifiedMerchants {
		merchants = append(merchants, strings.ToUpper(strings.TrimSpace(m)))
	}
	c.Payments.VerifiedMerchants = merchants
	c.Payments.Currency = strings.ToLower(c.Payments.Currency)
}

func hashBytes(data []byte) string {
	h := sha256.Sum256(data)
	return "sha256:" + hex.EncodeToString(h[:])
}

// Summary returns a short human-readable description of the rule tables.
func (c *Config) Summary() []string {
	cities := make([]string, 0, len(c.Hotel.CityMinimums))
	for k := range c.Hotel.CityMinimums {
		cities = append(cities, k)
	}
	sort.Strings(cities)
	return []string{
		fmt.Sprintf("restricted regions: %s", strings.Join(c.RestrictedRegions, ", ")),
		fmt.Sprintf("domestic flags: %s", strings.Join(c.DomesticFlags, ", ")),
		fmt.Sprintf("domestic cities: %s", strings.Join(c.DomesticCities, ", ")),
		fmt.Sprintf("advance notice: %d days for international flights", c.AdvanceNoticeDays),
		fmt.Sprintf("budget: block above %.2fx, approval above %.2fx, group cap %s%.0f",
			c.Budget.BlockAbove, c.Budget.ApprovalAbove, c.CurrencySymbol, c.Budget.GroupCap),
		fmt.Sprintf("hotel: max %d guests, max %d nights, city minimums for %s (default %s%.0f)",
			c.Hotel.MaxGuests, c.Hotel.MaxStayNights, strings.Join(cities, ", "), c.CurrencySymbol, c.Hotel.DefaultMinimum),
		fmt.Sprintf("payments: max %s%.0f per transaction, verified merchants %s",
			c.CurrencySymbol, c.Payments.MaxTransaction, strings.Join(c.Payments.VerifiedMerchants, ", ")),
		fmt.Sprintf("alerts: %d webhook(s)", len(c.Alerts)),
	}
}

// DefaultConfigYAML returns the default policy as commented YAML.
func DefaultConfigYAML() string {
	return `# intentguard policy configuration
# Generated by: intentguard init-policy
#
# Every category runs for every intent token; failures are never short-circuited.
#   1. Input validation     -> BLOCK
#   2. Restricted regions   -> BLOCK_AND_LOG
#      Advance notice       -> REQUIRE_HUMAN_APPROVAL
#   3. Budget ratio         -> BLOCK or REQUIRE_HUMAN_APPROVAL
#   4. Class justification  -> REQUIRE_HUMAN_APPROVAL
#   5. Hotel rules          -> BLOCK or REQUIRE_HUMAN_APPROVAL

# Destinations that are always blocked and logged.
restricted_regions:
  - syria
  - north korea
  - afghanistan
  - crimea

# Destinations exempt from the international advance-notice rule.
domestic_flags:
  - domestic
  - india

# Premium cabins between two of these cities need justification.
domestic_cities:
  - delhi
  - mumbai
  - bangalore
  - chennai
  - kolkata

# Flights departing sooner than this need approval.
advance_notice_days: 3

# Symbol used in failure messages.
currency_symbol: "₹"

budget:
  # price / budget above this ratio -> BLOCK
  block_above: 1.1
  # price / budget above this ratio -> REQUIRE_HUMAN_APPROVAL
  approval_above: 1.0
  # budget * travelers above this -> REQUIRE_HUMAN_APPROVAL
  group_cap: 200000

hotel:
  max_guests: 4
  max_stay_nights: 14
  # Minimum plausible budget per night by city.
  city_minimums:
    paris: 3000
    london: 3500
    new york: 4000
    tokyo: 2500
    dubai: 2000
    singapore: 2500
    mumbai: 1500
    delhi: 1500
    bangalore: 1200
  default_minimum: 1000

# Direct bill payments (POST /api/execute).
payments:
  verified_merchants:
    - ELECTRICITY_BOARD
    - WATER_UTILITY
    - TELECOM_PROVIDER
  # Amounts above this are blocked.
  max_transaction: 5000
  currency: inr

# Webhooks notified on matching outcome statuses or event types
# (restricted_region, bill_payment, approval_denied).
# alerts:
#   - url: https://hooks.slack.com/services/...
#     format: slack
#     events: [BLOCKED, REQUIRES_APPROVAL]
#     attempts: 3     # deliveries tried on 429, 5xx or network errors
#     backoff: 1s     # doubled after each failure; Retry-After wins
#     timeout: 5s     # per request
`
}
