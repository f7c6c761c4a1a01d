// Package identity реализует проверку личности покупателя по паре
// телефон + PIN.
//
// Гейт — единственный авторитет по корректности PIN: текстовому слою модель
// лишь пересылает то, что ввёл пользователь, и её утверждениям о «правильном
// пароле» здесь не верят.
package identity

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"errors"
	"fmt"

	"github.com/mmeshcher/pekara-system/internal/model"
	"github.com/mmeshcher/pekara-system/internal/repository"
	"github.com/mmeshcher/pekara-system/internal/validation"
)

// Status — исход проверки личности.
type Status string

const (
	// StatusOK — телефон новый (создан покупатель) либо PIN совпал.
	StatusOK Status = "ok"
	// StatusWrongPIN — телефон известен, но PIN не совпал.
	StatusWrongPIN Status = "wrong_pin"
	// StatusNoPhone — телефон отсутствует или непригоден.
	StatusNoPhone Status = "no_phone"
	// StatusNoPIN — PIN отсутствует или непригоден.
	StatusNoPIN Status = "no_pin"
)

// Result — результат разрешения личности.
type Result struct {
	Status   Status
	Customer *model.Customer
}

// CustomerStore — контракт хранилища покупателей, используемый гейтом.
type CustomerStore interface {
	GetCustomerByPhone(ctx context.Context, projectID, phone string) (*model.Customer, error)
	CreateCustomer(ctx context.Context, c *model.Customer) (int64, error)
	UpdateCustomerName(ctx context.Context, projectID, phone, name string) error
}

// Verifier сравнивает предъявленный PIN с хранимым.
// Реализации обязаны сравнивать за константное время.
type Verifier interface {
	Verify(presented, stored string) bool
}

// SHA256Verifier сравнивает SHA-256-дайджесты значений через hmac.Equal,
// чтобы исключить утечку по времени сравнения.
type SHA256Verifier struct{}

// Verify возвращает true, если значения совпадают.
func (SHA256Verifier) Verify(presented, stored string) bool {
	a := sha256.Sum256([]byte(presented))
	b := sha256.Sum256([]byte(stored))
	return hmac.Equal(a[:], b[:])
}

// Gate разрешает кортеж (проект, телефон, PIN, имя) в запись покупателя.
type Gate struct {
	store    CustomerStore
	verifier Verifier
}

// NewGate создаёт гейт. Если verifier равен nil, используется SHA256Verifier.
func NewGate(store CustomerStore, verifier Verifier) *Gate {
	if verifier == nil {
		verifier = SHA256Verifier{}
	}
	return &Gate{store: store, verifier: verifier}
}

// Resolve проверяет личность и при необходимости создаёт покупателя.
//
// Новый телефон создаёт запись с пустым набором категорий; совпавший PIN с
// новым именем обновляет только имя. Ошибка возвращается только при сбое
// хранилища; доменные исходы кодируются статусом.
func (g *Gate) Resolve(ctx context.Context, projectID, phone, pin, name string) (Result, error) {
	phone = validation.NormalizePhone(phone)
	if !validation.IsValidPhone(phone) {
		return Result{Status: StatusNoPhone}, nil
	}
	if !validation.IsValidPIN(pin) {
		return Result{Status: StatusNoPIN}, nil
	}

	existing, err := g.store.GetCustomerByPhone(ctx, projectID, phone)
	if err != nil {
		if errors.Is(err, repository.ErrCustomerNotFound) {
			c := &model.Customer{
				ProjectID:  projectID,
				Phone:      phone,
				PIN:        pin,
				Name:       name,
				Categories: nil,
			}
			id, createErr := g.store.CreateCustomer(ctx, c)
			if createErr != nil {
				return Result{}, fmt.Errorf("create customer: %w", createErr)
			}
			c.ID = id
			return Result{Status: StatusOK, Customer: c}, nil
		}
		return Result{}, fmt.Errorf("get customer: %w", err)
	}

	if !g.verifier.Verify(pin, existing.PIN) {
		return Result{Status: StatusWrongPIN}, nil
	}

	if name != "" && name != existing.Name {
		if err := g.store.UpdateCustomerName(ctx, projectID, phone, name); err != nil {
			return Result{}, fmt.Errorf("update customer name: %w", err)
		}
		existing.Name = name
	}

	return Result{Status: StatusOK, Customer: existing}, nil
}
