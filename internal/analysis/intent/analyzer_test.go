package intent

import "testing"

var keys = []string{"instagram", "localizacao", "whatsapp"}

func TestAnalyzeVerseRequest(t *testing.T) {
	for _, msg := range []string{"Me dá um versículo", "quero uma palavra de Deus", "BÍBLIA"} {
		if decision := Analyze(msg, keys); decision.Kind != Verse {
			t.Fatalf("Analyze(%q) = %v, want verse", msg, decision.Kind)
		}
	}
}

func TestAnalyzeContactRequest(t *testing.T) {
	decision := Analyze("me manda o link do whatsapp", keys)
	if decision.Kind != Contact || decision.Key != "whatsapp" {
		t.Fatalf("unexpected decision: %+v", decision)
	}

	decision = Analyze("Onde fica o endereço?", keys)
	if decision.Kind != Contact || decision.Key != "localizacao" {
		t.Fatalf("unexpected decision: %+v", decision)
	}
}

func TestAnalyzeUnknownContactIsChat(t *testing.T) {
	decision := Analyze("me manda o link do youtube", keys)
	if decision.Kind != Chat {
		t.Fatalf("expected chat for key missing from the table, got %+v", decision)
	}
}

func TestAnalyzeMentionWithoutRequestIsChat(t *testing.T) {
	decision := Analyze("vi o culto pelo instagram e gostei muito", keys)
	if decision.Kind != Chat {
		t.Fatalf("expected chat, got %+v", decision)
	}
}

func TestNormalize(t *testing.T) {
	if got := Normalize("  Localização! "); got != "localizacao" {
		t.Fatalf("Normalize = %q", got)
	}
}
