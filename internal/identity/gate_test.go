package identity

import (
	"context"
	"testing"

	"github.com/mmeshcher/pekara-system/internal/model"
	"github.com/mmeshcher/pekara-system/internal/repository"
)

func TestResolve_NewPhoneCreatesCustomer(t *testing.T) {
	store := repository.NewMemoryRepository()
	gate := NewGate(store, nil)

	res, err := gate.Resolve(context.Background(), model.DefaultProjectID, "+385 60 000 0001", "1234", "Ana")
	if err != nil {
		t.Fatalf("Resolve error: %v", err)
	}
	if res.Status != StatusOK {
		t.Fatalf("status = %s, want ok", res.Status)
	}
	if res.Customer == nil || res.Customer.ID == 0 {
		t.Fatalf("customer not created: %+v", res.Customer)
	}
	if res.Customer.Phone != "+38560000001" {
		t.Fatalf("phone not normalized: %q", res.Customer.Phone)
	}
	if len(res.Customer.Categories) != 0 {
		t.Fatalf("new customer must have empty categories, got %v", res.Customer.Categories)
	}
}

func TestResolve_MatchingPINRefreshesName(t *testing.T) {
	store := repository.NewMemoryRepository()
	gate := NewGate(store, nil)
	ctx := context.Background()

	if _, err := gate.Resolve(ctx, model.DefaultProjectID, "+38560000001", "1234", "Ana"); err != nil {
		t.Fatalf("first resolve: %v", err)
	}

	res, err := gate.Resolve(ctx, model.DefaultProjectID, "+38560000001", "1234", "Ana Anić")
	if err != nil {
		t.Fatalf("second resolve: %v", err)
	}
	if res.Status != StatusOK {
		t.Fatalf("status = %s, want ok", res.Status)
	}

	stored, err := store.GetCustomerByPhone(ctx, model.DefaultProjectID, "+38560000001")
	if err != nil {
		t.Fatalf("get customer: %v", err)
	}
	if stored.Name != "Ana Anić" {
		t.Fatalf("name = %q, want refreshed", stored.Name)
	}
	if stored.PIN != "1234" {
		t.Fatalf("pin must stay unchanged, got %q", stored.PIN)
	}
}

func TestResolve_WrongPIN(t *testing.T) {
	store := repository.NewMemoryRepository()
	gate := NewGate(store, nil)
	ctx := context.Background()

	if _, err := gate.Resolve(ctx, model.DefaultProjectID, "+38560000001", "1234", "Ana"); err != nil {
		t.Fatalf("seed resolve: %v", err)
	}

	res, err := gate.Resolve(ctx, model.DefaultProjectID, "+38560000001", "9999", "Netko Drugi")
	if err != nil {
		t.Fatalf("Resolve error: %v", err)
	}
	if res.Status != StatusWrongPIN {
		t.Fatalf("status = %s, want wrong_pin", res.Status)
	}
	if res.Customer != nil {
		t.Fatalf("wrong pin must not expose the customer record")
	}

	// Имя не должно было обновиться.
	stored, _ := store.GetCustomerByPhone(ctx, model.DefaultProjectID, "+38560000001")
	if stored.Name != "Ana" {
		t.Fatalf("name mutated on wrong pin: %q", stored.Name)
	}
}

func TestResolve_MissingFields(t *testing.T) {
	store := repository.NewMemoryRepository()
	gate := NewGate(store, nil)

	tests := []struct {
		name  string
		phone string
		pin   string
		want  Status
	}{
		{name: "no phone", phone: "", pin: "1234", want: StatusNoPhone},
		{name: "garbage phone", phone: "abc", pin: "1234", want: StatusNoPhone},
		{name: "no pin", phone: "+38560000001", pin: "", want: StatusNoPIN},
		{name: "short pin", phone: "+38560000001", pin: "12", want: StatusNoPIN},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := gate.Resolve(context.Background(), model.DefaultProjectID, tt.phone, tt.pin, "")
			if err != nil {
				t.Fatalf("Resolve error: %v", err)
			}
			if res.Status != tt.want {
				t.Fatalf("status = %s, want %s", res.Status, tt.want)
			}
		})
	}

	// Никакие покупатели при этом не создаются.
	customers, _ := store.ListCustomers(context.Background(), model.DefaultProjectID)
	if len(customers) != 0 {
		t.Fatalf("customers created on invalid input: %+v", customers)
	}
}

func TestSHA256Verifier(t *testing.T) {
	v := SHA256Verifier{}

	if !v.Verify("1234", "1234") {
		t.Fatalf("equal values must verify")
	}
	if v.Verify("1234", "9999") {
		t.Fatalf("different values must not verify")
	}
}
