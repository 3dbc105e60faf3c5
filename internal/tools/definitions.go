package tools

import "github.com/RobertBecaria/MARGOCRM/internal/store"

const (
	both       = AccessPrivileged | AccessRestricted
	dateFormat = "YYYY-MM-DD"
)

// Builtin returns the household tool catalog in the order it is advertised.
func Builtin() []*Tool {
	return []*Tool{
		{
			Name:        ListStaff,
			Description: "Получить список сотрудников. Можно фильтровать по роли.",
			Params: []Param{
				{Name: "role", Type: TypeString, Enum: store.StaffRoles},
			},
			Access:  AccessPrivileged,
			Handler: listStaff,
		},
		{
			Name:        GetStaffByID,
			Description: "Получить информацию о сотруднике по ID.",
			Params: []Param{
				{Name: "user_id", Type: TypeInteger, Description: "ID сотрудника", Required: true},
			},
			Access:  AccessPrivileged,
			Handler: getStaffByID,
		},
		{
			Name:        CreateStaff,
			Description: "Создать нового сотрудника. Если пароль не указан, будет создан временный пароль.",
			Params: []Param{
				{Name: "email", Type: TypeString, Required: true},
				{Name: "full_name", Type: TypeString, Required: true},
				{Name: "role", Type: TypeString, Required: true, Enum: store.StaffRoles},
				{Name: "phone", Type: TypeString},
				{Name: "password", Type: TypeString},
			},
			Access:  AccessPrivileged,
			Handler: createStaff,
		},
		{
			Name:             GetSchedule,
			Description:      "Получить расписание. Можно фильтровать по сотруднику и датам.",
			StaffDescription: "Получить моё расписание.",
			Params: []Param{
				{Name: "user_id", Type: TypeInteger},
				{Name: "date_from", Type: TypeString, Description: dateFormat},
				{Name: "date_to", Type: TypeString, Description: dateFormat},
			},
			Access:  both,
			Pinned:  []string{"user_id"},
			Handler: getSchedule,
		},
		{
			Name:        CreateSchedule,
			Description: "Создать смену в расписании.",
			Params: []Param{
				{Name: "user_id", Type: TypeInteger, Required: true},
				{Name: "date", Type: TypeString, Description: dateFormat, Required: true},
				{Name: "shift_start", Type: TypeString, Description: "HH:MM", Required: true},
				{Name: "shift_end", Type: TypeString, Description: "HH:MM", Required: true},
				{Name: "location", Type: TypeString, Required: true},
				{Name: "notes", Type: TypeString},
			},
			Access:  AccessPrivileged,
			Handler: createSchedule,
		},
		{
			Name:        UpdateScheduleStatus,
			Description: "Обновить статус смены (scheduled/completed/cancelled).",
			Params: []Param{
				{Name: "schedule_id", Type: TypeInteger, Required: true},
				{Name: "status", Type: TypeString, Required: true, Enum: store.ScheduleStatuses},
			},
			Access:  AccessPrivileged,
			Handler: updateScheduleStatus,
		},
		{
			Name:             GetTasks,
			Description:      "Получить список задач. Можно фильтровать по исполнителю и статусу.",
			StaffDescription: "Получить мои задачи. Можно фильтровать по статусу.",
			Params: []Param{
				{Name: "assigned_to", Type: TypeInteger},
				{Name: "status", Type: TypeString, Enum: store.TaskStatuses},
			},
			Access:  both,
			Pinned:  []string{"assigned_to"},
			Handler: getTasks,
		},
		{
			Name:        CreateTask,
			Description: "Создать новую задачу для сотрудника.",
			Params: []Param{
				{Name: "assigned_to", Type: TypeInteger, Required: true},
				{Name: "title", Type: TypeString, Required: true},
				{Name: "description", Type: TypeString},
				{Name: "priority", Type: TypeString, Enum: store.TaskPriorities},
				{Name: "due_date", Type: TypeString, Description: dateFormat},
			},
			Access:  AccessPrivileged,
			Handler: createTask,
		},
		{
			Name:             UpdateTaskStatus,
			Description:      "Обновить статус задачи.",
			StaffDescription: "Обновить статус моей задачи.",
			Params: []Param{
				{Name: "task_id", Type: TypeInteger, Required: true},
				{Name: "status", Type: TypeString, Required: true, Enum: store.TaskStatuses},
				{Name: "assigned_to", Type: TypeInteger},
			},
			Access:  both,
			Pinned:  []string{"assigned_to"},
			Handler: updateTaskStatus,
		},
		{
			Name:             GetPayroll,
			Description:      "Получить записи о зарплатах.",
			StaffDescription: "Получить мои записи о зарплате.",
			Params: []Param{
				{Name: "user_id", Type: TypeInteger},
			},
			Access:  both,
			Pinned:  []string{"user_id"},
			Handler: getPayroll,
		},
		{
			Name:        CreatePayroll,
			Description: "Создать запись о зарплате.",
			Params: []Param{
				{Name: "user_id", Type: TypeInteger, Required: true},
				{Name: "period_start", Type: TypeString, Description: dateFormat, Required: true},
				{Name: "period_end", Type: TypeString, Description: dateFormat, Required: true},
				{Name: "base_salary", Type: TypeNumber, Required: true},
				{Name: "bonuses", Type: TypeNumber},
				{Name: "deductions", Type: TypeNumber},
			},
			Access:  AccessPrivileged,
			Handler: createPayroll,
		},
		{
			Name:        GetFinanceSummary,
			Description: "Получить финансовую сводку за период.",
			Params: []Param{
				{Name: "period_start", Type: TypeString, Description: dateFormat, Required: true},
				{Name: "period_end", Type: TypeString, Description: dateFormat, Required: true},
			},
			Access:  AccessPrivileged,
			Handler: getFinanceSummary,
		},
		{
			Name:        SendNotification,
			Description: "Отправить уведомление сотруднику.",
			Params: []Param{
				{Name: "user_id", Type: TypeInteger, Required: true},
				{Name: "title", Type: TypeString, Required: true},
				{Name: "message", Type: TypeString, Required: true},
				{Name: "type", Type: TypeString, Enum: store.NotificationTypes},
			},
			Access:  AccessPrivileged,
			Handler: sendNotification,
		},
		{
			Name:        CreateScheduleChangeRequest,
			Description: "Запросить изменение расписания.",
			Params: []Param{
				{Name: "user_id", Type: TypeInteger, Required: true},
				{Name: "schedule_id", Type: TypeInteger, Description: "ID текущей смены", Required: true},
				{Name: "requested_date", Type: TypeString, Description: "Желаемая дата " + dateFormat, Required: true},
				{Name: "reason", Type: TypeString, Description: "Причина запроса", Required: true},
			},
			Access:  AccessRestricted,
			Pinned:  []string{"user_id"},
			Handler: createScheduleChangeRequest,
		},
		{
			Name:        CreateExpense,
			Description: "Записать расход.",
			Params: []Param{
				{Name: "category", Type: TypeString, Required: true, Enum: store.ExpenseCategories},
				{Name: "description", Type: TypeString, Required: true},
				{Name: "amount", Type: TypeNumber, Required: true},
				{Name: "date", Type: TypeString, Description: dateFormat + ", по умолчанию сегодня"},
			},
			Access:  AccessPrivileged,
			Handler: createExpense,
		},
		{
			Name:        CreateIncome,
			Description: "Записать доход.",
			Params: []Param{
				{Name: "source", Type: TypeString, Required: true},
				{Name: "amount", Type: TypeNumber, Required: true},
				{Name: "description", Type: TypeString},
				{Name: "category", Type: TypeString},
				{Name: "date", Type: TypeString, Description: dateFormat + ", по умолчанию сегодня"},
			},
			Access:  AccessPrivileged,
			Handler: createIncome,
		},
		{
			Name:             GetNotifications,
			Description:      "Получить уведомления пользователя (по умолчанию свои).",
			StaffDescription: "Получить мои уведомления.",
			Params: []Param{
				{Name: "user_id", Type: TypeInteger},
				{Name: "unread_only", Type: TypeBoolean},
			},
			Access:  both,
			Pinned:  []string{"user_id"},
			Handler: getNotifications,
		},
		{
			Name:             CreateNote,
			Description:      "Создать заметку (по умолчанию для себя).",
			StaffDescription: "Создать мою заметку.",
			Params: []Param{
				{Name: "user_id", Type: TypeInteger},
				{Name: "title", Type: TypeString, Required: true},
				{Name: "content", Type: TypeString},
				{Name: "color", Type: TypeString, Enum: store.NoteColors},
			},
			Access:  both,
			Pinned:  []string{"user_id"},
			Handler: createNote,
		},
		{
			Name:             GetNotes,
			Description:      "Получить заметки пользователя (по умолчанию свои).",
			StaffDescription: "Получить мои заметки.",
			Params: []Param{
				{Name: "user_id", Type: TypeInteger},
			},
			Access:  both,
			Pinned:  []string{"user_id"},
			Handler: getNotes,
		},
	}
}
