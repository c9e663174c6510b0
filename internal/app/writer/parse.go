package writer

import (
	"errors"
	"fmt"
	"github.com/kotche/memo/internal/model"
	"strconv"
	"strings"
	"time"
)

const dateTimeLayout = "2006-01-02 15:04"

func parseCredentials(args []string) (email, password string, err error) {
	if len(args) != 2 {
		return "", "", errors.New("expected email and password")
	}
	return args[0], args[1], nil
}

// parseMemoInput разбирает "заголовок | описание | YYYY-MM-DD HH:MM".
// Описание можно опустить: "заголовок | YYYY-MM-DD HH".
func parseMemoInput(payload string) (title, details string, reminderAt time.Time, err error) {
	parts := strings.Split(payload, "|")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}

	switch len(parts) {
	case 2:
		title = parts[0]
	case 3:
		title, details = parts[0], parts[1]
	default:
		return "", "", time.Time{}, errors.New("ожидается заголовок, описание и дата через |")
	}

	reminderAt, err = parseDateTime(parts[len(parts)-1])
	if err != nil {
		return "", "", time.Time{}, err
	}

	return title, details, reminderAt, nil
}

func parseDateTime(input string) (time.Time, error) {
	fields := strings.Fields(input)
	if len(fields) != 2 {
		return time.Time{}, fmt.Errorf("дата '%s' должна быть в формате YYYY-MM-DD HH:MM", input)
	}
	if !isValidTimeFormat(fields[1]) {
		return time.Time{}, fmt.Errorf("время '%s' должно быть в формате HH или HH:MM", fields[1])
	}

	parsed, err := time.ParseInLocation(dateTimeLayout, fields[0]+" "+formatTime(fields[1]), time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("некорректная дата '%s'", input)
	}
	return parsed, nil
}

// splitIndex отделяет номер заметки от остатка команды.
func splitIndex(payload string) (int, string, error) {
	payload = strings.TrimSpace(payload)
	head, rest, _ := strings.Cut(payload, " ")

	n, err := strconv.Atoi(head)
	if err != nil {
		return 0, "", fmt.Errorf("failed to parse memo number '%s': %w", head, err)
	}
	return n, strings.TrimSpace(rest), nil
}

func formatMemoList(memos []model.Memo) string {
	if len(memos) == 0 {
		return "Заметок нет"
	}

	var response strings.Builder
	response.WriteString("Заметки:\n")
	for i, memo := range memos {
		response.WriteString(fmt.Sprintf("%d. %s (напоминание: %s)\n",
			i+1, memo.Title, memo.ReminderAt.In(time.Local).Format(dateTimeLayout)))
		if memo.Details != "" {
			response.WriteString("   " + memo.Details + "\n")
		}
	}

	return response.String()
}

func isValidTimeFormat(input string) bool {
	if _, err := time.Parse("15", input); err == nil {
		return true
	}
	if _, err := time.Parse("15:04", input); err == nil {
		return true
	}
	return false
}

func formatTime(input string) string {
	if strings.Contains(input, ":") {
		return input
	}
	return input + ":00"
}
