package registry

import (
	"fmt"
	"testing"
)

type testItem struct {
	ID string
}

func TestBaseRegistry_Register(t *testing.T) {
	registry := NewBaseRegistry[testItem]()

	tests := []struct {
		name     string
		itemName string
		wantErr  bool
	}{
		{
			name:     "register valid item",
			itemName: "test-1",
			wantErr:  false,
		},
		{
			name:     "register item with empty name",
			itemName: "",
			wantErr:  true,
		},
		{
			name:     "register duplicate item",
			itemName: "test-1",
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := registry.Register(tt.itemName, testItem{ID: tt.itemName})
			if (err != nil) != tt.wantErr {
				t.Errorf("BaseRegistry.Register() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestBaseRegistry_Get(t *testing.T) {
	registry := NewBaseRegistry[testItem]()

	if err := registry.Register("test-1", testItem{ID: "test-1"}); err != nil {
		t.Fatalf("Failed to register test item: %v", err)
	}

	item, ok := registry.Get("test-1")
	if !ok {
		t.Fatal("BaseRegistry.Get() ok = false, want true")
	}
	if item.ID != "test-1" {
		t.Errorf("BaseRegistry.Get() item.ID = %v, want %v", item.ID, "test-1")
	}

	if _, ok := registry.Get("non-existing"); ok {
		t.Error("BaseRegistry.Get() ok = true for non-existing item, want false")
	}
}

func TestBaseRegistry_NamesPreservesRegistrationOrder(t *testing.T) {
	registry := NewBaseRegistry[testItem]()

	expected := []string{"third", "first", "second"}
	for _, name := range expected {
		if err := registry.Register(name, testItem{ID: name}); err != nil {
			t.Fatalf("Failed to register item %s: %v", name, err)
		}
	}

	names := registry.Names()
	if len(names) != len(expected) {
		t.Fatalf("BaseRegistry.Names() length = %v, want %v", len(names), len(expected))
	}
	for i, name := range expected {
		if names[i] != name {
			t.Errorf("BaseRegistry.Names()[%d] = %v, want %v", i, names[i], name)
		}
	}

	items := registry.List()
	for i, name := range expected {
		if items[i].ID != name {
			t.Errorf("BaseRegistry.List()[%d].ID = %v, want %v", i, items[i].ID, name)
		}
	}
}

func TestBaseRegistry_Remove(t *testing.T) {
	registry := NewBaseRegistry[testItem]()
	_ = registry.Register("test-1", testItem{ID: "test-1"})
	_ = registry.Register("test-2", testItem{ID: "test-2"})

	if err := registry.Remove("test-1"); err != nil {
		t.Fatalf("BaseRegistry.Remove() error = %v", err)
	}
	if err := registry.Remove("test-1"); err == nil {
		t.Error("BaseRegistry.Remove() error = nil for missing item, want error")
	}

	names := registry.Names()
	if len(names) != 1 || names[0] != "test-2" {
		t.Errorf("BaseRegistry.Names() after Remove = %v, want [test-2]", names)
	}
	if registry.Len() != 1 {
		t.Errorf("BaseRegistry.Len() = %v, want %v", registry.Len(), 1)
	}
}

func TestBaseRegistry_ConcurrentAccess(t *testing.T) {
	registry := NewBaseRegistry[testItem]()

	done := make(chan struct{})
	for i := 0; i < 8; i++ {
		go func(n int) {
			defer func() { done <- struct{}{} }()
			name := fmt.Sprintf("item-%d", n)
			_ = registry.Register(name, testItem{ID: name})
			_, _ = registry.Get(name)
			_ = registry.Names()
		}(i)
	}
	for i := 0; i < 8; i++ {
		<-done
	}

	if registry.Len() != 8 {
		t.Errorf("BaseRegistry.Len() = %v, want %v", registry.Len(), 8)
	}
}
