package i18n

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func initLang(t *testing.T, lang string) context.Context {
	t.Helper()
	if err := Init("en"); err != nil {
		t.Fatalf("Init: %v", err)
	}
	return WithLanguage(context.Background(), lang)
}

func TestTranslate(t *testing.T) {
	tests := []struct {
		lang string
		id   string
		want string
	}{
		{"en", "SectionPairs", "Suspicious answer pairs"},
		{"ru", "SectionPairs", "Подозрительно похожие ответы"},
		{"en", "ColStudent", "Student"},
		{"ru", "ColStudent", "Студент"},
		{"de", "ColStudent", "Student"},
	}
	for _, tt := range tests {
		t.Run(tt.lang+"/"+tt.id, func(t *testing.T) {
			ctx := initLang(t, tt.lang)
			if got := T(ctx, tt.id); got != tt.want {
				t.Errorf("T(%s) = %q, want %q", tt.id, got, tt.want)
			}
		})
	}
}

func TestPluralTranslation(t *testing.T) {
	tests := []struct {
		lang  string
		count int
		want  string
	}{
		{"en", 1, "1 grade needs a manual check"},
		{"en", 5, "5 grades need a manual check"},
		{"ru", 1, "1 оценка требует ручной проверки"},
		{"ru", 3, "3 оценки требуют ручной проверки"},
		{"ru", 5, "5 оценок требуют ручной проверки"},
	}
	for _, tt := range tests {
		ctx := initLang(t, tt.lang)
		if got := Tp(ctx, "ReviewCount", tt.count); got != tt.want {
			t.Errorf("%s Tp(ReviewCount, %d) = %q, want %q", tt.lang, tt.count, got, tt.want)
		}
	}
}

func TestTemplateDataTranslation(t *testing.T) {
	ctx := initLang(t, "en")
	got := Td(ctx, "SectionQuestionPairs", map[string]any{"Number": 3})
	if got != "Question 3" {
		t.Errorf("Td(SectionQuestionPairs) = %q, want 'Question 3'", got)
	}
}

func TestLabel(t *testing.T) {
	tests := []struct {
		lang, in, want string
	}{
		{"en", "critical", "Critical"},
		{"en", "Very Hard", "Very Hard"},
		{"ru", "Below Average", "Ниже среднего"},
		{"ru", "moderate", "Средний"},
		{"en", "unheard of", "unheard of"},
		{"en", "", ""},
	}
	for _, tt := range tests {
		ctx := initLang(t, tt.lang)
		if got := Label(ctx, tt.in); got != tt.want {
			t.Errorf("%s Label(%q) = %q, want %q", tt.lang, tt.in, got, tt.want)
		}
	}
}

func TestMissingKey(t *testing.T) {
	ctx := initLang(t, "en")
	if got := T(ctx, "NonExistentKey"); got != "NonExistentKey" {
		t.Errorf("T(NonExistentKey) = %q, want 'NonExistentKey'", got)
	}
}

func TestMiddleware(t *testing.T) {
	if err := Init("en"); err != nil {
		t.Fatalf("Init: %v", err)
	}
	var got string
	h := Middleware("en")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = T(r.Context(), "ErrNotFound")
	}))

	tests := []struct {
		name   string
		target string
		accept string
		want   string
	}{
		{"default", "/", "", "Not found."},
		{"accept-language", "/", "ru-RU,ru;q=0.9", "Не найдено."},
		{"query wins", "/?lang=en", "ru", "Not found."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.target, nil)
			if tt.accept != "" {
				req.Header.Set("Accept-Language", tt.accept)
			}
			h.ServeHTTP(httptest.NewRecorder(), req)
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}
