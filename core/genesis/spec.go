package genesis

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/big"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/holiman/uint256"
)

// GenesisSpec seeds a fresh ledger: the sale flag and the initial payment-token
// allocations.
type GenesisSpec struct {
	GenesisTime string            `json:"genesisTime"`
	SaleActive  bool              `json:"saleActive"`
	Alloc       map[string]string `json:"alloc"` // addr -> amount

	genesisTimestamp time.Time
	allocations      []Allocation
}

// Allocation is a validated token grant.
type Allocation struct {
	Account [20]byte
	Amount  *big.Int
}

// LoadGenesisSpec reads and validates a JSON genesis file.
func LoadGenesisSpec(path string) (*GenesisSpec, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("genesis spec path must be provided")
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read genesis spec %q: %w", path, err)
	}
	spec, err := ParseGenesisSpec(raw)
	if err != nil {
		return nil, fmt.Errorf("genesis spec %q: %w", path, err)
	}
	return spec, nil
}

// ParseGenesisSpec decodes and validates a JSON genesis document.
func ParseGenesisSpec(raw []byte) (*GenesisSpec, error) {
	var spec GenesisSpec
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&spec); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if err := spec.validate(); err != nil {
		return nil, fmt.Errorf("invalid: %w", err)
	}
	return &spec, nil
}

func (s *GenesisSpec) GenesisTimestamp() time.Time { return s.genesisTimestamp }

// Allocations returns the validated grants sorted by account.
func (s *GenesisSpec) Allocations() []Allocation {
	out := make([]Allocation, len(s.allocations))
	for i, a := range s.allocations {
		out[i] = Allocation{Account: a.Account, Amount: new(big.Int).Set(a.Amount)}
	}
	return out
}

func (s *GenesisSpec) validate() error {
	parsedTime, err := parseGenesisTime(s.GenesisTime)
	if err != nil {
		return err
	}
	s.genesisTimestamp = parsedTime

	s.allocations = s.allocations[:0]
	seen := make(map[[20]byte]struct{}, len(s.Alloc))
	for addrStr, amountStr := range s.Alloc {
		addr, err := ParseBech32Account(strings.TrimSpace(addrStr))
		if err != nil {
			return fmt.Errorf("alloc %q: %w", addrStr, err)
		}
		if _, dup := seen[addr]; dup {
			return fmt.Errorf("alloc %q: duplicate account", addrStr)
		}
		seen[addr] = struct{}{}
		amount, err := parseAmountString(amountStr)
		if err != nil {
			return fmt.Errorf("alloc %q: %w", addrStr, err)
		}
		s.allocations = append(s.allocations, Allocation{Account: addr, Amount: amount})
	}
	sort.Slice(s.allocations, func(i, j int) bool {
		return bytes.Compare(s.allocations[i].Account[:], s.allocations[j].Account[:]) < 0
	})
	return nil
}

func parseGenesisTime(value string) (time.Time, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return time.Time{}, nil
	}
	ts, err := time.Parse(time.RFC3339, trimmed)
	if err != nil {
		return time.Time{}, fmt.Errorf("genesisTime: %w", err)
	}
	return ts.UTC(), nil
}

func parseAmountString(value string) (*big.Int, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return big.NewInt(0), nil
	}
	amount, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", value)
	}
	if amount.Sign() < 0 {
		return nil, fmt.Errorf("amount must not be negative")
	}
	if _, overflow := uint256.FromBig(amount); overflow {
		return nil, fmt.Errorf("amount exceeds 256 bits")
	}
	return amount, nil
}
