// Package locale содержит локализованные тексты сервиса.
//
// Все различия между языками — данные в одной таблице, а не ветвления в коде:
// оркестратор один, реплики подставляются по коду языка.
package locale

import "strings"

// Texts содержит все пользовательские реплики для одного языка.
type Texts struct {
	// LangName — название языка для инструкции модели («отвечай на …»).
	LangName    string
	Title       string
	Description string
	Welcome     string
	// ConfirmedFmt — подтверждение заказа; подставляется итоговая сумма в евро.
	ConfirmedFmt    string
	ErrMissingPhone string
	ErrMissingPIN   string
	ErrWrongPIN     string
	ErrGeneric      string
}

var table = map[string]Texts{
	"hr": {
		LangName:        "Croatian",
		Title:           "Pekara Burek01",
		Description:     "Naručite burek putem chata i preuzmite ga bez čekanja.",
		Welcome:         "Dobrodošli! Što želite naručiti? Za početak mi treba vaš broj telefona.",
		ConfirmedFmt:    "Vaša narudžba je potvrđena. Ukupno za platiti: %.2f %s (plaćanje kod preuzimanja).",
		ErrMissingPhone: "Narudžbu nisam mogao potvrditi: nedostaje broj telefona. Molim pošaljite svoj broj telefona.",
		ErrMissingPIN:   "Narudžbu nisam mogao potvrditi: nedostaje PIN. Molim pošaljite svoj PIN.",
		ErrWrongPIN:     "PIN nije točan za ovaj broj telefona, narudžba nije spremljena. Pokušajte ponovno.",
		ErrGeneric:      "Došlo je do pogreške, narudžba nije spremljena. Molim pokušajte ponovno.",
	},
	"de": {
		LangName:        "German",
		Title:           "Bäckerei Burek01",
		Description:     "Bestellen Sie Burek per Chat und holen Sie ihn ohne Wartezeit ab.",
		Welcome:         "Willkommen! Was möchten Sie bestellen? Zuerst brauche ich Ihre Telefonnummer.",
		ConfirmedFmt:    "Ihre Bestellung ist bestätigt. Gesamtpreis: %.2f %s (Zahlung bei Abholung).",
		ErrMissingPhone: "Die Bestellung konnte nicht bestätigt werden: Telefonnummer fehlt. Bitte senden Sie Ihre Telefonnummer.",
		ErrMissingPIN:   "Die Bestellung konnte nicht bestätigt werden: PIN fehlt. Bitte senden Sie Ihre PIN.",
		ErrWrongPIN:     "Die PIN stimmt für diese Telefonnummer nicht, die Bestellung wurde nicht gespeichert. Bitte versuchen Sie es erneut.",
		ErrGeneric:      "Es ist ein Fehler aufgetreten, die Bestellung wurde nicht gespeichert. Bitte versuchen Sie es erneut.",
	},
	"en": {
		LangName:        "English",
		Title:           "Bakery Burek01",
		Description:     "Order burek in the chat and pick it up without waiting.",
		ConfirmedFmt:    "Your order is confirmed. Total to pay: %.2f %s (payment on pickup).",
		Welcome:         "Welcome! What would you like to order? First I need your phone number.",
		ErrMissingPhone: "I could not confirm the order: the phone number is missing. Please send your phone number.",
		ErrMissingPIN:   "I could not confirm the order: the PIN is missing. Please send your PIN.",
		ErrWrongPIN:     "The PIN does not match this phone number, the order was not saved. Please try again.",
		ErrGeneric:      "Something went wrong, the order was not saved. Please try again.",
	},
}

// Resolve приводит произвольное значение lang к поддерживаемому коду языка:
// префиксы de и en, для всего остального hr.
func Resolve(lang string) string {
	lang = strings.ToLower(strings.TrimSpace(lang))
	switch {
	case strings.HasPrefix(lang, "de"):
		return "de"
	case strings.HasPrefix(lang, "en"):
		return "en"
	default:
		return "hr"
	}
}

// Get возвращает таблицу текстов для кода языка. Код должен быть
// предварительно нормализован через Resolve.
func Get(lang string) Texts {
	if t, ok := table[lang]; ok {
		return t
	}
	return table["hr"]
}
