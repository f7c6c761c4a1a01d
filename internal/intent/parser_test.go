package intent

import (
	"strings"
	"testing"
)

func TestParse_NoMarker(t *testing.T) {
	res := Parse("Dobar dan! Što želite naručiti?")

	if res.Payload != nil {
		t.Fatalf("payload = %+v, want nil", res.Payload)
	}
	if res.ParseErr != nil {
		t.Fatalf("parse err = %v, want nil", res.ParseErr)
	}
	if res.Reply != "Dobar dan! Što želite naručiti?" {
		t.Fatalf("unexpected reply: %q", res.Reply)
	}
}

func TestParse_ValidPayload(t *testing.T) {
	text := "Hvala, narudžba je zaprimljena!\n" +
		Marker + ` {"phone":"+38560000001","pin":"1234","name":"Ana","pickup_time":"sutra u 9","items":{"burek_sir":2},"total":10}`

	res := Parse(text)

	if res.ParseErr != nil {
		t.Fatalf("parse err = %v", res.ParseErr)
	}
	if res.Payload == nil {
		t.Fatalf("expected payload")
	}
	if res.Payload.Phone != "+38560000001" || res.Payload.PIN != "1234" {
		t.Fatalf("unexpected identity: %+v", res.Payload)
	}
	if res.Payload.Items["burek_sir"] != 2 {
		t.Fatalf("unexpected items: %+v", res.Payload.Items)
	}
	if res.Payload.Total == nil || *res.Payload.Total != 10 {
		t.Fatalf("unexpected total: %v", res.Payload.Total)
	}
	if strings.Contains(res.Reply, Marker) || strings.Contains(res.Reply, "burek_sir") {
		t.Fatalf("reply still contains payload text: %q", res.Reply)
	}
	if res.Reply != "Hvala, narudžba je zaprimljena!" {
		t.Fatalf("unexpected reply: %q", res.Reply)
	}
}

func TestParse_KeepsTextAfterPayload(t *testing.T) {
	text := "Potvrđeno. " + Marker + `{"phone":"1","pin":"2","items":{}}` + " Vidimo se!"

	res := Parse(text)

	if res.Reply != "Potvrđeno.\nVidimo se!" {
		t.Fatalf("unexpected reply: %q", res.Reply)
	}
}

func TestParse_NestedBracesAndStrings(t *testing.T) {
	text := Marker + ` {"phone":"+385","pin":"1234","name":"A {B} \"C\"","items":{"burek_sir":1}} `

	res := Parse(text)

	if res.ParseErr != nil {
		t.Fatalf("parse err = %v", res.ParseErr)
	}
	if res.Payload == nil || res.Payload.Name != `A {B} "C"` {
		t.Fatalf("unexpected payload: %+v", res.Payload)
	}
}

func TestParse_BrokenJSON(t *testing.T) {
	text := "Evo vaše narudžbe.\n" + Marker + ` {"phone": "+385", "pin": oops}`

	res := Parse(text)

	if res.Payload != nil {
		t.Fatalf("payload = %+v, want nil", res.Payload)
	}
	if res.ParseErr == nil {
		t.Fatalf("expected parse error")
	}
	if strings.Contains(res.Reply, Marker) {
		t.Fatalf("reply still contains marker: %q", res.Reply)
	}
	if !strings.Contains(res.Reply, "Evo vaše narudžbe.") {
		t.Fatalf("conversational part lost: %q", res.Reply)
	}
}

func TestParse_UnclosedObjectStripsTail(t *testing.T) {
	text := "Reply text.\n" + Marker + ` {"phone":"+385", "items": {"burek_sir": 1`

	res := Parse(text)

	if res.Payload != nil {
		t.Fatalf("payload = %+v, want nil", res.Payload)
	}
	if res.ParseErr == nil {
		t.Fatalf("expected parse error")
	}
	if res.Reply != "Reply text." {
		t.Fatalf("unexpected reply: %q", res.Reply)
	}
}

func TestParse_MarkerWithoutObject(t *testing.T) {
	res := Parse("Tekst. " + Marker)

	if res.Payload != nil || res.ParseErr == nil {
		t.Fatalf("expected soft failure, got %+v", res)
	}
	if res.Reply != "Tekst." {
		t.Fatalf("unexpected reply: %q", res.Reply)
	}
}

func TestParse_DropsNonPositiveQuantities(t *testing.T) {
	text := Marker + `{"phone":"+385","pin":"1234","items":{"burek_sir":2,"burek_meso":0,"burek_krumpir":-1}}`

	res := Parse(text)

	if res.Payload == nil {
		t.Fatalf("expected payload")
	}
	if len(res.Payload.Items) != 1 || res.Payload.Items["burek_sir"] != 2 {
		t.Fatalf("unexpected items: %+v", res.Payload.Items)
	}
}
