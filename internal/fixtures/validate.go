package fixtures

import (
	"fmt"
)

// Validate checks the shape of every section. It does not check anything the
// receiving service would check itself, such as DDL syntax.
func (f *Fixtures) Validate() error {
	if err := f.Bigtable.validate(); err != nil {
		return fmt.Errorf("bigtable: %w", err)
	}
	if err := f.Datastore.validate(); err != nil {
		return fmt.Errorf("datastore: %w", err)
	}
	if err := f.Firestore.validate(); err != nil {
		return fmt.Errorf("firestore: %w", err)
	}
	if err := f.PubSub.validate(); err != nil {
		return fmt.Errorf("pubsub: %w", err)
	}
	if err := f.Relational.validate(); err != nil {
		return fmt.Errorf("relational: %w", err)
	}
	return nil
}

func (b BigtableFixtures) validate() error {
	tables := make(map[string]bool, len(b.Tables))
	for i, t := range b.Tables {
		if t.ID == "" {
			return fmt.Errorf("table %d: id is required", i)
		}
		if tables[t.ID] {
			return fmt.Errorf("table %q: duplicate id", t.ID)
		}
		tables[t.ID] = true

		if len(t.ColumnFamilies) == 0 {
			return fmt.Errorf("table %q: at least one column family is required", t.ID)
		}
		families := make(map[string]bool, len(t.ColumnFamilies))
		for _, cf := range t.ColumnFamilies {
			if cf.Name == "" {
				return fmt.Errorf("table %q: column family name is required", t.ID)
			}
			if families[cf.Name] {
				return fmt.Errorf("table %q: duplicate column family %q", t.ID, cf.Name)
			}
			families[cf.Name] = true
			if cf.MaxVersions <= 0 {
				return fmt.Errorf("table %q: column family %q: max_versions must be positive", t.ID, cf.Name)
			}
		}
	}
	return nil
}

func (d DatastoreFixtures) validate() error {
	users, err := uniqueIDs("user", len(d.Users), func(i int) string { return d.Users[i].ID })
	if err != nil {
		return err
	}
	products, err := uniqueIDs("product", len(d.Products), func(i int) string { return d.Products[i].ID })
	if err != nil {
		return err
	}
	if _, err := uniqueIDs("order", len(d.Orders), func(i int) string { return d.Orders[i].ID }); err != nil {
		return err
	}

	for _, o := range d.Orders {
		if !users[o.UserID] {
			return fmt.Errorf("order %q: unknown user %q", o.ID, o.UserID)
		}
		if !products[o.ProductID] {
			return fmt.Errorf("order %q: unknown product %q", o.ID, o.ProductID)
		}
		if o.Quantity < 0 {
			return fmt.Errorf("order %q: quantity must not be negative", o.ID)
		}
	}
	return nil
}

func (f FirestoreFixtures) validate() error {
	for i, u := range f.Users {
		if u.Name == "" {
			return fmt.Errorf("user %d: name is required", i)
		}
	}
	for i, p := range f.Products {
		if p.Name == "" {
			return fmt.Errorf("product %d: name is required", i)
		}
	}
	return nil
}

func (p PubSubFixtures) validate() error {
	_, err := uniqueIDs("topic", len(p.Topics), func(i int) string { return p.Topics[i] })
	return err
}

func (r RelationalFixtures) validate() error {
	users := make(map[int64]bool, len(r.Users))
	for _, u := range r.Users {
		if users[u.UserID] {
			return fmt.Errorf("user %d: duplicate id", u.UserID)
		}
		users[u.UserID] = true
	}

	orders := make(map[int64]bool, len(r.Orders))
	for _, o := range r.Orders {
		if orders[o.OrderID] {
			return fmt.Errorf("order %d: duplicate id", o.OrderID)
		}
		orders[o.OrderID] = true

		if !users[o.UserID] {
			return fmt.Errorf("order %d: unknown user %d", o.OrderID, o.UserID)
		}
		if o.Quantity < 0 {
			return fmt.Errorf("order %d: quantity must not be negative", o.OrderID)
		}
		if _, err := o.PriceRat(); err != nil {
			return err
		}
	}
	return nil
}

func uniqueIDs(kind string, n int, id func(int) string) (map[string]bool, error) {
	seen := make(map[string]bool, n)
	for i := 0; i < n; i++ {
		v := id(i)
		if v == "" {
			return nil, fmt.Errorf("%s %d: id is required", kind, i)
		}
		if seen[v] {
			return nil, fmt.Errorf("%s %q: duplicate id", kind, v)
		}
		seen[v] = true
	}
	return seen, nil
}
