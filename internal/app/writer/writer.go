package writer

import (
	"context"
	"errors"
	"fmt"
	"github.com/kotche/memo/internal/model"
	"github.com/kotche/memo/internal/service/identity"
	memo_serv "github.com/kotche/memo/internal/service/memos"
	"github.com/kotche/memo/internal/service/scheduler"
	"gopkg.in/telebot.v3"
	"log"
	"sync"
	"time"
)

const (
	longProcessTimeout = 15 * time.Second
)

// chatState is what the bot remembers about one Telegram chat.
type chatState struct {
	session *identity.Session

	mu sync.Mutex
	// pending is the last memo whose creation failed; /retry resends it
	// with the same id.
	pending *model.Memo
}

type Writer struct {
	bot         *telebot.Bot
	provider    identity.Provider
	coordinator memo_serv.Coordinator
	scheduler   scheduler.Scheduler

	mu    sync.Mutex
	chats map[int64]*chatState
}

func New(bot *telebot.Bot, provider identity.Provider, coordinator memo_serv.Coordinator, scheduler scheduler.Scheduler) *Writer {
	return &Writer{
		bot:         bot,
		provider:    provider,
		coordinator: coordinator,
		scheduler:   scheduler,
		chats:       make(map[int64]*chatState),
	}
}

func (w *Writer) Start() {
	w.helpHandler()
	w.signUpHandler()
	w.signInHandler()
	w.signOutHandler()
	w.profileHandler()
	w.notifyHandler()
	w.createMemoHandler()
	w.retryHandler()
	w.listMemoHandler()
	w.editMemoHandler()
	w.deleteHandler()

	log.Println("Writer started...")
	w.bot.Start()
}

// helpHandler обработчик помощь
func (w *Writer) helpHandler() {
	helpMessage := "Доступные команды:\n" +
		"/signup {email} {пароль} - регистрация\n" +
		"/signin {email} {пароль} - вход\n" +
		"/signout - выход\n" +
		"/me - профиль\n" +
		"/notify - разрешить напоминания в этом чате\n" +
		"/new {заголовок} | {описание} | {YYYY-MM-DD HH:MM} - создать заметку\n" +
		"/retry - повторить неудавшееся создание заметки\n" +
		"/list - список заметок\n" +
		"/edit {N} {заголовок} | {описание} | {YYYY-MM-DD HH:MM} - изменить заметку N из списка\n" +
		"/delete {N} - удалить заметку N из списка\n" +
		"/help - показать это сообщение\n\n" +
		"Время можно указать как HH или HH:MM (например, 14 или 15:37)"

	w.bot.Handle("/help", func(c telebot.Context) error {
		return c.Send(helpMessage)
	})
}

// signUpHandler обработчик регистрации
func (w *Writer) signUpHandler() {
	w.bot.Handle("/signup", func(c telebot.Context) error {
		email, password, err := parseCredentials(c.Args())
		if err != nil {
			return c.Send("Укажите email и пароль: /signup email пароль")
		}

		ctx, cancel := context.WithTimeout(context.Background(), longProcessTimeout)
		defer cancel()

		chat := w.chat(c.Chat().ID)
		userID, err := chat.session.SignUp(ctx, email, password)
		if err != nil {
			log.Printf("failed to sign up '%s' in chat '%d': %v", email, c.Chat().ID, err)
			return c.Send(errorMessage(err))
		}

		return c.Send(fmt.Sprintf("Аккаунт %s создан (id %s). Разрешите напоминания командой /notify", email, userID))
	})
}

// signInHandler обработчик входа
func (w *Writer) signInHandler() {
	w.bot.Handle("/signin", func(c telebot.Context) error {
		email, password, err := parseCredentials(c.Args())
		if err != nil {
			return c.Send("Укажите email и пароль: /signin email пароль")
		}

		ctx, cancel := context.WithTimeout(context.Background(), longProcessTimeout)
		defer cancel()

		chat := w.chat(c.Chat().ID)
		prev, _ := chat.session.Current()

		userID, err := chat.session.Enter(ctx, email, password)
		if err != nil {
			log.Printf("failed to sign in '%s' in chat '%d': %v", email, c.Chat().ID, err)
			return c.Send(errorMessage(err))
		}
		if prev != "" && prev != userID {
			w.coordinator.Forget(prev)
		}

		if _, err = w.coordinator.FetchAll(ctx, userID); err != nil {
			log.Printf("failed to fetch memos for user '%s': %v", userID, err)
		}

		return c.Send(fmt.Sprintf("Вы вошли как %s", email))
	})
}

// signOutHandler обработчик выхода
func (w *Writer) signOutHandler() {
	w.bot.Handle("/signout", func(c telebot.Context) error {
		chat := w.chat(c.Chat().ID)

		userID := chat.session.SignOut()
		if userID == "" {
			return c.Send("Вы не вошли")
		}
		w.coordinator.Forget(userID)
		chat.setPending(nil)

		return c.Send("Вы вышли")
	})
}

// profileHandler обработчик профиль
func (w *Writer) profileHandler() {
	w.bot.Handle("/me", func(c telebot.Context) error {
		ctx, cancel := context.WithTimeout(context.Background(), longProcessTimeout)
		defer cancel()

		user, err := w.chat(c.Chat().ID).session.Profile(ctx)
		if err != nil {
			log.Printf("failed to load profile in chat '%d': %v", c.Chat().ID, err)
			return c.Send(errorMessage(err))
		}

		return c.Send(fmt.Sprintf("%s (id %s)", user.Email, user.ID))
	})
}

// notifyHandler обработчик разрешения напоминаний
func (w *Writer) notifyHandler() {
	w.bot.Handle("/notify", func(c telebot.Context) error {
		return c.Send(w.notify(c.Chat().ID))
	})
}

// notify grants notifications to the chat and registers triggers for memos
// written while they were not allowed.
func (w *Writer) notify(chatID int64) string {
	userID, err := w.chat(chatID).session.Current()
	if err != nil {
		return errorMessage(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), longProcessTimeout)
	defer cancel()

	granted, err := w.scheduler.RequestPermission(ctx, userID, chatID)
	if err != nil {
		log.Printf("failed to request notification permission for user '%s': %v", userID, err)
		return errorMessage(err)
	}
	if !granted {
		return "Напоминания не разрешены"
	}

	if err = w.coordinator.Resync(ctx, userID); err != nil {
		log.Printf("failed to resync reminders for user '%s': %v", userID, err)
		return "Напоминания будут приходить в этот чат, но старые заметки обновить не удалось: " + errorMessage(err)
	}

	return "Напоминания будут приходить в этот чат"
}

// createMemoHandler обработчик создать заметку
func (w *Writer) createMemoHandler() {
	w.bot.Handle("/new", func(c telebot.Context) error {
		return c.Send(w.newMemo(c.Chat().ID, c.Message().Payload))
	})
}

func (w *Writer) newMemo(chatID int64, payload string) string {
	chat := w.chat(chatID)
	userID, err := chat.session.Current()
	if err != nil {
		return errorMessage(err)
	}

	title, details, reminderAt, err := parseMemoInput(payload)
	if err != nil {
		return fmt.Sprintf("Не удалось разобрать заметку: %v\nФормат: /new заголовок | описание | YYYY-MM-DD HH:MM", err)
	}

	return w.create(chat, userID, model.NewMemo(title, details, reminderAt))
}

// retryHandler обработчик повторного создания
func (w *Writer) retryHandler() {
	w.bot.Handle("/retry", func(c telebot.Context) error {
		return c.Send(w.retry(c.Chat().ID))
	})
}

func (w *Writer) retry(chatID int64) string {
	chat := w.chat(chatID)
	userID, err := chat.session.Current()
	if err != nil {
		return errorMessage(err)
	}

	pending := chat.takePending()
	if pending == nil {
		return "Нечего повторять"
	}

	return w.create(chat, userID, *pending)
}

func (w *Writer) create(chat *chatState, userID model.UserID, memo model.Memo) string {
	ctx, cancel := context.WithTimeout(context.Background(), longProcessTimeout)
	defer cancel()

	memo, err := w.coordinator.Create(ctx, userID, memo)
	if err != nil {
		log.Printf("failed to create memo '%s' for user '%s': %v", memo.ID, userID, err)
		if !errors.Is(err, model.ErrValidation) {
			chat.setPending(&memo)
			return errorMessage(err) + "\nПовторить: /retry"
		}
		return errorMessage(err)
	}

	return fmt.Sprintf("Сохранена заметка \"%s\". Напоминание %s.", memo.Title, memo.ReminderAt.Format(dateTimeLayout))
}

// listMemoHandler обработчик получить список заметок
func (w *Writer) listMemoHandler() {
	w.bot.Handle("/list", func(c telebot.Context) error {
		userID, err := w.chat(c.Chat().ID).session.Current()
		if err != nil {
			return c.Send(errorMessage(err))
		}

		ctx, cancel := context.WithTimeout(context.Background(), longProcessTimeout)
		defer cancel()

		memos, err := w.coordinator.FetchAll(ctx, userID)
		if err != nil {
			log.Printf("failed to fetch memos for user '%s': %v", userID, err)
			return c.Send(errorMessage(err))
		}

		return c.Send(formatMemoList(memos))
	})
}

// editMemoHandler обработчик изменить заметку
func (w *Writer) editMemoHandler() {
	w.bot.Handle("/edit", func(c telebot.Context) error {
		userID, err := w.chat(c.Chat().ID).session.Current()
		if err != nil {
			return c.Send(errorMessage(err))
		}

		n, rest, err := splitIndex(c.Message().Payload)
		if err != nil {
			return c.Send("Не указан номер заметки! Формат: /edit N заголовок | описание | YYYY-MM-DD HH:MM")
		}

		memo, ok := pick(w.coordinator.Memos(userID), n)
		if !ok {
			return c.Send(fmt.Sprintf("Заметка %d не найдена. Обновите список: /list", n))
		}

		memo.Title, memo.Details, memo.ReminderAt, err = parseMemoInput(rest)
		if err != nil {
			return c.Send(fmt.Sprintf("Не удалось разобрать заметку: %v", err))
		}

		ctx, cancel := context.WithTimeout(context.Background(), longProcessTimeout)
		defer cancel()

		if err = w.coordinator.Update(ctx, userID, memo); err != nil {
			log.Printf("failed to update memo '%s' for user '%s': %v", memo.ID, userID, err)
			return c.Send(errorMessage(err))
		}

		return c.Send(fmt.Sprintf("Заметка %d изменена", n))
	})
}

// deleteHandler обработчик удалить заметку
func (w *Writer) deleteHandler() {
	w.bot.Handle("/delete", func(c telebot.Context) error {
		userID, err := w.chat(c.Chat().ID).session.Current()
		if err != nil {
			return c.Send(errorMessage(err))
		}

		n, _, err := splitIndex(c.Message().Payload)
		if err != nil {
			return c.Send("Не указан номер заметки!")
		}

		memo, ok := pick(w.coordinator.Memos(userID), n)
		if !ok {
			return c.Send(fmt.Sprintf("Заметка %d не найдена. Обновите список: /list", n))
		}

		ctx, cancel := context.WithTimeout(context.Background(), longProcessTimeout)
		defer cancel()

		if err = w.coordinator.Delete(ctx, userID, memo); err != nil {
			log.Printf("failed to delete memo '%s' for user '%s': %v", memo.ID, userID, err)
			return c.Send(errorMessage(err))
		}

		return c.Send("Заметка успешно удалена")
	})
}

func (w *Writer) chat(chatID int64) *chatState {
	w.mu.Lock()
	defer w.mu.Unlock()

	chat, ok := w.chats[chatID]
	if !ok {
		chat = &chatState{session: identity.NewSession(w.provider)}
		w.chats[chatID] = chat
	}
	return chat
}

func (s *chatState) setPending(memo *model.Memo) {
	s.mu.Lock()
	s.pending = memo
	s.mu.Unlock()
}

func (s *chatState) takePending() *model.Memo {
	s.mu.Lock()
	defer s.mu.Unlock()

	memo := s.pending
	s.pending = nil
	return memo
}

// pick returns the n-th memo (1-based) of list.
func pick(list []model.Memo, n int) (model.Memo, bool) {
	if n < 1 || n > len(list) {
		return model.Memo{}, false
	}
	return list[n-1], true
}

// errorMessage переводит ошибку в текст для пользователя
func errorMessage(err error) string {
	switch {
	case errors.Is(err, model.ErrNotAuthenticated):
		return "Сначала войдите: /signin email пароль"
	case errors.Is(err, model.ErrValidation):
		return fmt.Sprintf("Некорректные данные: %v", err)
	case errors.Is(err, model.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return "Операция заняла слишком много времени. Попробуйте позже."
	case errors.Is(err, model.ErrInvalidCredentials):
		return "Неверный email или пароль"
	case errors.Is(err, model.ErrEmailTaken):
		return "Этот email уже зарегистрирован"
	case errors.Is(err, model.ErrMemoNotFound):
		return "Заметка не найдена. Обновите список: /list"
	case errors.Is(err, model.ErrUserNotFound):
		return "Пользователь не найден"
	case errors.Is(err, model.ErrPermissionDenied):
		return "Напоминания не разрешены: /notify"
	case errors.Is(err, model.ErrAuth):
		return "Ошибка авторизации. Попробуйте позже."
	case errors.Is(err, model.ErrStore):
		return "Ошибка при сохранении. Попробуйте позже."
	default:
		return "Ошибка. Попробуйте позже."
	}
}
