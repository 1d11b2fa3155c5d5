package ticketapi

import (
	"testing"

	"github.com/ovalle/bedel/internal/models"
)

func TestBestMatch_KeywordHit(t *testing.T) {
	db := openTestDB(t)
	db.Create(&models.FAQ{
		Question: "¿Dónde puedo consultar los horarios de clase?",
		Answer:   "En Moodle.",
		Category: "Académico - Horarios",
		Keywords: `["horario","clases"]`,
	})
	db.Create(&models.FAQ{
		Question: "¿Cuáles son los pasos para la matrícula?",
		Answer:   "Preinscripción y pago.",
		Category: "Académico - Matrículas",
		Keywords: `["matrícula","inscripción"]`,
	})

	match, err := BestMatch(db, "¿cuándo sale el horario de cálculo?", "")
	if err != nil {
		t.Fatalf("BestMatch: %v", err)
	}
	if match == nil {
		t.Fatal("expected a match")
	}
	if match.Category != "Académico - Horarios" {
		t.Errorf("matched %q, want the horarios FAQ", match.Category)
	}
}

func TestBestMatch_SubjectBoost(t *testing.T) {
	db := openTestDB(t)
	db.Create(&models.FAQ{
		Question: "Información sobre proceso general",
		Answer:   "Respuesta A.",
		Category: "General",
		Keywords: `["proceso"]`,
	})
	db.Create(&models.FAQ{
		Question: "Información sobre proceso general",
		Answer:   "Respuesta B.",
		Category: "Matrículas",
		Keywords: `["proceso","matrícula"]`,
	})

	match, err := BestMatch(db, "necesito información del proceso", "matrícula")
	if err != nil {
		t.Fatalf("BestMatch: %v", err)
	}
	if match == nil {
		t.Fatal("expected a match")
	}
	if match.Answer != "Respuesta B." {
		t.Errorf("matched %q, want subject-boosted FAQ", match.Answer)
	}
}

func TestBestMatch_NoMatch(t *testing.T) {
	db := openTestDB(t)
	db.Create(&models.FAQ{
		Question: "¿Dónde queda la biblioteca?",
		Answer:   "Edificio central, piso 2.",
		Keywords: `["biblioteca"]`,
	})

	match, err := BestMatch(db, "xyzzy plugh", "")
	if err != nil {
		t.Fatalf("BestMatch: %v", err)
	}
	if match != nil {
		t.Errorf("expected nil match, got %q", match.Question)
	}
}

func TestTokenize(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"¿Dónde queda la biblioteca?", []string{"dónde", "queda", "la", "biblioteca"}},
		{"HORARIO de-clases", []string{"horario", "de", "clases"}},
		{"", nil},
	}
	for _, tt := range tests {
		got := tokenize(tt.in)
		if len(got) != len(tt.want) {
			t.Errorf("tokenize(%q) = %v, want %v", tt.in, got, tt.want)
			continue
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("tokenize(%q)[%d] = %q, want %q", tt.in, i, got[i], tt.want[i])
			}
		}
	}
}

func TestUnmarshalKeywords_Malformed(t *testing.T) {
	if got := unmarshalKeywords("not json"); got != nil {
		t.Errorf("unmarshalKeywords = %v, want nil", got)
	}
	if got := unmarshalKeywords(""); got != nil {
		t.Errorf("unmarshalKeywords(empty) = %v, want nil", got)
	}
}
