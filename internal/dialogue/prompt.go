package dialogue

import (
	"fmt"
	"strings"
)

// ReplyOnEmptyGeneration is spoken when the generation backend returns an
// empty candidate set.
const ReplyOnEmptyGeneration = "Извините, произошла ошибка. Пожалуйста, повторите."

// ReplyOnGenerationFailure is spoken when the generation backend fails
// outright; the session stays in progress.
const ReplyOnGenerationFailure = "Извините, произошла техническая ошибка. Попробуйте позже."

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

// SystemPrompt renders the agent persona, order facts and dialogue rules,
// with the optional knowledge-base appendix.
func SystemPrompt(agentName, companyName string, order OrderSummary, knowledge string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Вы - %s, AI-ассистент компании \"%s\".\n", agentName, companyName)
	b.WriteString("Ваша задача - позвонить Исполнителю и предложить ему выполнить заказ.\n\n")

	b.WriteString("Информация о заказе:\n")
	fmt.Fprintf(&b, "- Описание: %s\n", orDefault(order.Description, "не указано"))
	fmt.Fprintf(&b, "- Адрес: %s\n", orDefault(order.Address, "не указан"))
	fmt.Fprintf(&b, "- Дата и время: %s\n", orDefault(order.Datetime, "не указано"))
	fmt.Fprintf(&b, "- Оплата: %s\n\n", orDefault(order.Payment, "не указано"))

	b.WriteString("Правила ведения диалога:\n")
	b.WriteString("1. Представьтесь и назовите компанию\n")
	b.WriteString("2. Кратко опишите заказ и спросите, готов ли Исполнитель его принять\n")
	b.WriteString("3. Ответьте на вопросы Исполнителя\n")
	b.WriteString("4. Если Исполнитель согласен - подтвердите заказ\n")
	b.WriteString("5. Если Исполнитель отказывается - вежливо попрощайтесь\n")
	b.WriteString("6. Говорите коротко и по делу\n")
	b.WriteString("7. Будьте вежливы и профессиональны\n\n")

	if knowledge != "" {
		fmt.Fprintf(&b, "Дополнительная информация из базы знаний компании:\n%s\n\n", knowledge)
	}

	return b.String()
}

// Greeting is the fixed opening line of every call. AdditionalInfo is
// intentionally not spoken here.
func Greeting(agentName, companyName, executorName string, order OrderSummary) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Здравствуйте, %s! ", executorName)
	fmt.Fprintf(&b, "Это %s из компании \"%s\". ", agentName, companyName)
	fmt.Fprintf(&b, "У нас есть для вас заказ: %s.", orDefault(order.Description, "заказ"))

	if order.Payment != "" {
		fmt.Fprintf(&b, " Оплата: %s.", order.Payment)
	}
	b.WriteString(" Вы готовы принять этот заказ?")

	return b.String()
}
