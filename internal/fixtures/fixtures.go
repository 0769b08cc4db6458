// Package fixtures defines the sample schemas and records written by the seeders and
// loads them from YAML. The default set is embedded in the binary.
package fixtures

import (
	_ "embed"
	"fmt"
	"math/big"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultYAML []byte

// Fixtures is the full set of seed data, one section per backend
type Fixtures struct {
	Bigtable   BigtableFixtures   `yaml:"bigtable"`
	Datastore  DatastoreFixtures  `yaml:"datastore"`
	Firestore  FirestoreFixtures  `yaml:"firestore"`
	PubSub     PubSubFixtures     `yaml:"pubsub"`
	Relational RelationalFixtures `yaml:"relational"`
}

// BigtableFixtures lists the tables to create
type BigtableFixtures struct {
	Tables []Table `yaml:"tables"`
}

// Table is a wide-column table and its column families
type Table struct {
	ID             string         `yaml:"id"`
	ColumnFamilies []ColumnFamily `yaml:"column_families"`
}

// ColumnFamily pairs a family name with a max-versions garbage-collection rule
type ColumnFamily struct {
	Name        string `yaml:"name"`
	MaxVersions int    `yaml:"max_versions"`
}

// DatastoreFixtures holds the entities written in a single batch
type DatastoreFixtures struct {
	Users    []User    `yaml:"users"`
	Products []Product `yaml:"products"`
	Orders   []Order   `yaml:"orders"`
}

// FirestoreFixtures holds the documents added per collection
type FirestoreFixtures struct {
	Users    []User    `yaml:"users"`
	Products []Product `yaml:"products"`
}

// PubSubFixtures lists topic names
type PubSubFixtures struct {
	Topics []string `yaml:"topics"`
}

// RelationalFixtures is shared by the Spanner and YDB seeders. Only the DDL differs.
type RelationalFixtures struct {
	SpannerDDL []string   `yaml:"spanner_ddl"`
	YDBDDL     []string   `yaml:"ydb_ddl"`
	Users      []SQLUser  `yaml:"users"`
	Orders     []SQLOrder `yaml:"orders"`
}

// User is a user record. ID is empty for documents that get a server-assigned id.
type User struct {
	ID    string `yaml:"id,omitempty"`
	Name  string `yaml:"name"`
	Email string `yaml:"email"`
	Age   int64  `yaml:"age,omitempty"`
	Role  string `yaml:"role,omitempty"`
}

// Product is a product record
type Product struct {
	ID       string  `yaml:"id,omitempty"`
	Name     string  `yaml:"name"`
	Price    float64 `yaml:"price"`
	Category string  `yaml:"category"`
	InStock  *bool   `yaml:"in_stock,omitempty"`
}

// Order references a user and a product by id
type Order struct {
	ID        string `yaml:"id"`
	UserID    string `yaml:"user_id"`
	ProductID string `yaml:"product_id"`
	Quantity  int64  `yaml:"quantity"`
	Status    string `yaml:"status"`
}

// SQLUser is a row of the relational Users table
type SQLUser struct {
	UserID   int64  `yaml:"user_id"`
	UserName string `yaml:"user_name"`
	Email    string `yaml:"email"`
}

// SQLOrder is a row of the relational Orders table. Price is a decimal string.
type SQLOrder struct {
	OrderID     int64  `yaml:"order_id"`
	UserID      int64  `yaml:"user_id"`
	ProductName string `yaml:"product_name"`
	Quantity    int64  `yaml:"quantity"`
	Price       string `yaml:"price"`
}

// decimalPrice matches plain decimal literals that fit both Spanner NUMERIC and the
// YDB Decimal(22, 9) column: at most 13 integer digits and 9 fractional digits.
var decimalPrice = regexp.MustCompile(`^-?[0-9]{1,13}(\.[0-9]{1,9})?$`)

// PriceRat parses Price as an exact decimal
func (o SQLOrder) PriceRat() (*big.Rat, error) {
	if !decimalPrice.MatchString(o.Price) {
		return nil, fmt.Errorf("order %d: invalid price %q: want a decimal with at most 13 integer and 9 fractional digits", o.OrderID, o.Price)
	}
	r, ok := new(big.Rat).SetString(o.Price)
	if !ok {
		return nil, fmt.Errorf("order %d: invalid price %q", o.OrderID, o.Price)
	}
	return r, nil
}

// Default returns the embedded fixture set
func Default() (*Fixtures, error) {
	return Parse(defaultYAML)
}

// Load reads fixtures from path, or returns the defaults when path is empty
func Load(path string) (*Fixtures, error) {
	if path == "" {
		return Default()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read fixtures file: %w", err)
	}

	f, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

// Parse decodes and validates a YAML fixture document
func Parse(data []byte) (*Fixtures, error) {
	var f Fixtures
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to decode fixtures: %w", err)
	}
	if err := f.Validate(); err != nil {
		return nil, fmt.Errorf("invalid fixtures: %w", err)
	}
	return &f, nil
}

// Marshal renders f back to YAML
func (f *Fixtures) Marshal() ([]byte, error) {
	return yaml.Marshal(f)
}
