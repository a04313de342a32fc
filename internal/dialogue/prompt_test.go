package dialogue

import (
	"strings"
	"testing"
)

func TestSystemPrompt_IncludesOrderAndKnowledge(t *testing.T) {
	order := OrderSummary{
		Description: "Доставка мебели",
		Address:     "ул. Пушкина, д. 10",
		Datetime:    "Сегодня, 15:00-17:00",
		Payment:     "3500 рублей",
	}

	p := SystemPrompt("Анна", "Быстрая Доставка", order, "Стандартное время ожидания - 30 минут.")

	for _, want := range []string{
		"Анна",
		"\"Быстрая Доставка\"",
		"Доставка мебели",
		"ул. Пушкина, д. 10",
		"Сегодня, 15:00-17:00",
		"3500 рублей",
		"базы знаний",
		"Стандартное время ожидания - 30 минут.",
	} {
		if !strings.Contains(p, want) {
			t.Fatalf("system prompt missing %q:\n%s", want, p)
		}
	}
}

func TestSystemPrompt_OmitsKnowledgeSectionWhenEmpty(t *testing.T) {
	p := SystemPrompt("Анна", "Компания", OrderSummary{}, "")
	if strings.Contains(p, "базы знаний") {
		t.Fatalf("knowledge section should be absent:\n%s", p)
	}
}

func TestSystemPrompt_DefaultsForMissingFields(t *testing.T) {
	p := SystemPrompt("Анна", "Компания", OrderSummary{}, "")
	if !strings.Contains(p, "- Описание: не указано") {
		t.Fatalf("expected description placeholder:\n%s", p)
	}
	if !strings.Contains(p, "- Адрес: не указан") {
		t.Fatalf("expected address placeholder:\n%s", p)
	}
}

func TestGreeting_FullOrder(t *testing.T) {
	order := OrderSummary{
		Description:    "Доставка мебели",
		Payment:        "3500 рублей",
		AdditionalInfo: "Подъём на 5 этаж",
	}

	g := Greeting("Анна", "Быстрая Доставка", "Иван Петров", order)

	if !strings.Contains(g, "Здравствуйте, Иван Петров!") {
		t.Fatalf("greeting missing salutation: %s", g)
	}
	if !strings.Contains(g, "Это Анна из компании \"Быстрая Доставка\".") {
		t.Fatalf("greeting missing introduction: %s", g)
	}
	if !strings.Contains(g, "Оплата: 3500 рублей.") {
		t.Fatalf("greeting missing payment: %s", g)
	}
	if !strings.HasSuffix(g, "Вы готовы принять этот заказ?") {
		t.Fatalf("greeting missing closing question: %s", g)
	}
	// Free-text order notes are never spoken in the greeting.
	if strings.Contains(g, "Подъём на 5 этаж") {
		t.Fatalf("greeting must not contain additional info: %s", g)
	}
}

func TestGreeting_NoPayment(t *testing.T) {
	g := Greeting("Анна", "Компания", "Иван", OrderSummary{Description: "Доставка документов"})
	if strings.Contains(g, "Оплата") {
		t.Fatalf("greeting should omit payment when empty: %s", g)
	}
}
