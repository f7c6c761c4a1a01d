// Package validation содержит функции валидации входных данных.
package validation

import "strings"

// NormalizePhone приводит номер телефона к канонической форме:
// только цифры, с сохранением ведущего «+».
func NormalizePhone(phone string) string {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return ""
	}

	var b strings.Builder
	for i, ch := range phone {
		if ch == '+' && i == 0 {
			b.WriteRune(ch)
			continue
		}
		if ch >= '0' && ch <= '9' {
			b.WriteRune(ch)
		}
	}
	return b.String()
}

// IsValidPhone проверяет нормализованный номер телефона: от 6 до 15 цифр.
func IsValidPhone(phone string) bool {
	digits := strings.TrimPrefix(phone, "+")
	if len(digits) < 6 || len(digits) > 15 {
		return false
	}
	for _, ch := range digits {
		if ch < '0' || ch > '9' {
			return false
		}
	}
	return true
}

// IsValidPIN проверяет PIN: от 4 до 8 цифр.
func IsValidPIN(pin string) bool {
	if len(pin) < 4 || len(pin) > 8 {
		return false
	}
	for _, ch := range pin {
		if ch < '0' || ch > '9' {
			return false
		}
	}
	return true
}

// SplitCategories разбирает список категорий из строки с разделителями,
// отбрасывая пустые элементы и пробелы.
func SplitCategories(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == ';'
	})

	var res []string
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			res = append(res, p)
		}
	}
	return res
}
