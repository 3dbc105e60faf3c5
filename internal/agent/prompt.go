package agent

import (
	"fmt"
	"strings"
	"time"

	"github.com/RobertBecaria/MARGOCRM/internal/store"
)

// StaticInstructions open every system prompt.
const StaticInstructions = `Ты — AI-ассистент системы управления домашним персоналом "Дом".
Ты помогаешь управлять сотрудниками, расписанием, задачами, зарплатами и финансами.
Отвечай на русском языке. Будь вежливым и полезным.
Используй доступные инструменты для выполнения действий.
Если пользователь просит что-то сделать — выполни действие через инструмент и сообщи результат.
Если спрашивают информацию — получи её через инструмент и расскажи понятно.`

// staffInstructions are appended for restricted callers.
const staffInstructions = `Ты разговариваешь с сотрудником. Инструменты автоматически работают с его собственными данными: расписанием, задачами, зарплатой и заметками. Не обещай действий, для которых у тебя нет инструмента.`

// Caller identifies who the turn runs for.
type Caller struct {
	ID   int64
	Name string
	Role store.Role
}

var weekdays = [...]string{"воскресенье", "понедельник", "вторник", "среда", "четверг", "пятница", "суббота"}

// BuildSystemPrompt returns the instructions plus a context block with the
// current date and the caller's identity. Dates in tool arguments are
// YYYY-MM-DD, so the date is given in that form.
func BuildSystemPrompt(now time.Time, c Caller) string {
	var b strings.Builder
	b.WriteString(StaticInstructions)
	if !c.Role.Privileged() {
		b.WriteString("\n")
		b.WriteString(staffInstructions)
	}
	fmt.Fprintf(&b, "\n\n== КОНТЕКСТ ==\nСегодня: %s (%s)\n", now.Format("2006-01-02"), weekdays[now.Weekday()])
	name := strings.TrimSpace(c.Name)
	if name == "" {
		name = "—"
	}
	fmt.Fprintf(&b, "Пользователь: %s (id %d, роль %s)\n", name, c.ID, c.Role)
	return b.String()
}
