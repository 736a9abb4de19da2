package catalog

// 进程级默认Schema，与线上数据库的一致性在带外维护
var defaultSchema = &Schema{
	Enums: map[string][]string{
		"UserRole":                   {"ADMIN", "PROJECT_MANAGER", "DEVELOPER", "MEMBER", "GUEST"},
		"UserStatus":                 {"ACTIVE", "INACTIVE"},
		"ProjectStatus":              {"PLANNING", "IN_PROGRESS", "COMPLETED"},
		"TaskStatus":                 {"TODO", "IN_PROGRESS", "DONE"},
		"TaskPriority":               {"LOW", "MEDIUM", "HIGH"},
		"TaskAttachmentType":         {"IMAGE", "FILE", "LINK", "PDF"},
		"NotificationChannel":        {"APP", "EMAIL"},
		"NotificationSeverity":       {"INFO", "WARNING", "CRITICAL"},
		"NotificationDeliveryStatus": {"PENDING", "SENT", "FAILED"},
		"SchedulerRunStatus":         {"SUCCESS", "FAILED", "SKIPPED"},
		"ExpenseCategory":            {"SOFTWARE", "TRAVEL", "EQUIPMENT", "LABOR", "OPERATIONS", "OTHER"},
	},
	Tables: []Table{
		{
			Name:        "User",
			Description: "Users of the platform with roles, status, and personal information",
			Columns: []Column{
				{"id", TypeString, "Unique identifier"},
				{"firstName", TypeString, "User's first name"},
				{"lastName", TypeString, "User's last name"},
				{"email", TypeString, "User's email address (unique)"},
				{"passwordHash", TypeString, "Hashed password"},
				{"role", TypeEnum, "User role from UserRole enum"},
				{"roleLabel", TypeString, "Custom role label"},
				{"hourlyRateCents", TypeInt, "Hourly rate in cents"},
				{"status", TypeEnum, "User status from UserStatus enum"},
				{"isVerified", TypeBoolean, "Whether user is verified"},
				{"profileImageUrl", TypeString, "URL to profile image"},
				{"resetToken", TypeString, "Password reset token"},
				{"resetTokenExpiresAt", TypeDateTime, "Reset token expiration time"},
				{"invitationToken", TypeString, "Invitation token"},
				{"invitationTokenExpiresAt", TypeDateTime, "Invitation token expiration time"},
				{"createdAt", TypeDateTime, "Creation timestamp"},
				{"updatedAt", TypeDateTime, "Last update timestamp"},
			},
		},
		{
			Name:        "Department",
			Description: "Departments within the organization",
			Columns: []Column{
				{"id", TypeString, "Unique identifier"},
				{"createdAt", TypeDateTime, "Creation timestamp"},
				{"description", TypeString, "Description of the department"},
				{"name", TypeString, "department's name"},
				{"updatedAt", TypeDateTime, "Last update timestamp"},
			},
		},
		{
			Name:        "RefreshToken",
			Description: "Refresh tokens for user authentication sessions",
			Columns: []Column{
				{"id", TypeString, "Unique identifier"},
				{"token", TypeString, "Refresh token value (unique)"},
				{"userId", TypeString, "User ID (references User.id)"},
				{"expiresAt", TypeDateTime, "Token expiration time"},
				{"revokedAt", TypeDateTime, "When token was revoked"},
				{"createdAt", TypeDateTime, "Creation timestamp"},
			},
		},
		{
			Name:        "Project",
			Description: "Projects in the system with budgets, timelines, and status",
			Columns: []Column{
				{"id", TypeString, "Unique identifier"},
				{"name", TypeString, "Project name"},
				{"description", TypeString, "Project description"},
				{"status", TypeEnum, "Project status from ProjectStatus enum"},
				{"startDate", TypeDateTime, "Project start date"},
				{"endDate", TypeDateTime, "Project end date"},
				{"budgetCents", TypeInt, "Project budget in cents"},
				{"projectManagerId", TypeString, "ID of project manager (references User.id)"},
				{"kanbanTemplateKey", TypeString, "Kanban template key"},
				{"createdAt", TypeDateTime, "Creation timestamp"},
				{"updatedAt", TypeDateTime, "Last update timestamp"},
			},
		},
		{
			Name:        "ProjectHealthSnapshot",
			Description: "Snapshot of project health metrics at a specific time",
			Columns: []Column{
				{"id", TypeString, "Unique identifier"},
				{"projectId", TypeString, "Project ID (references Project.id, unique)"},
				{"statusLabel", TypeString, "Health status label"},
				{"computedAt", TypeDateTime, "When the snapshot was computed"},
			},
		},
		{
			Name:        "ProjectTaskStatus",
			Description: "Custom task statuses for projects",
			Columns: []Column{
				{"id", TypeString, "Unique identifier"},
				{"projectId", TypeString, "Project ID (references Project.id)"},
				{"value", TypeString, "Status value (unique per project)"},
				{"label", TypeString, "Status label"},
				{"position", TypeInt, "Display position (unique per project)"},
				{"category", TypeEnum, "Category from TaskStatus enum"},
				{"createdAt", TypeDateTime, "Creation timestamp"},
				{"updatedAt", TypeDateTime, "Last update timestamp"},
			},
		},
		{
			Name:        "Phase",
			Description: "Project phases",
			Columns: []Column{
				{"id", TypeString, "Unique identifier"},
				{"projectId", TypeString, "Project ID (references Project.id)"},
				{"name", TypeString, "Phase name"},
				{"position", TypeInt, "Display position (unique per project)"},
				{"startDate", TypeDateTime, "Phase start date"},
				{"endDate", TypeDateTime, "Phase end date"},
				{"createdAt", TypeDateTime, "Creation timestamp"},
				{"updatedAt", TypeDateTime, "Last update timestamp"},
			},
		},
		{
			Name:        "Sprint",
			Description: "Sprints within project phases",
			Columns: []Column{
				{"id", TypeString, "Unique identifier"},
				{"projectId", TypeString, "Project ID (references Project.id)"},
				{"phaseId", TypeString, "Phase ID (references Phase.id)"},
				{"name", TypeString, "Sprint name (unique per phase)"},
				{"goal", TypeString, "Sprint goal"},
				{"startDate", TypeDateTime, "Sprint start date"},
				{"endDate", TypeDateTime, "Sprint end date"},
				{"createdAt", TypeDateTime, "Creation timestamp"},
				{"updatedAt", TypeDateTime, "Last update timestamp"},
			},
		},
		{
			Name:        "Task",
			Description: "Tasks within projects with assignments, priorities, and status",
			Columns: []Column{
				{"id", TypeString, "Unique identifier"},
				{"projectId", TypeString, "Project ID (references Project.id)"},
				{"sprintId", TypeString, "Sprint ID (references Sprint.id)"},
				{"assigneeId", TypeString, "Assignee user ID (references User.id)"},
				{"statusId", TypeString, "Status ID (references ProjectTaskStatus.id)"},
				{"title", TypeString, "Task title"},
				{"description", TypeString, "Task description"},
				{"dueDate", TypeDateTime, "Task due date"},
				{"priority", TypeEnum, "Task priority from TaskPriority enum"},
				{"estimateHours", TypeFloat, "Estimated hours to complete"},
				{"actualSeconds", TypeInt, "Actual time spent in seconds"},
				{"createdAt", TypeDateTime, "Creation timestamp"},
				{"updatedAt", TypeDateTime, "Last update timestamp"},
			},
		},
		{
			Name:        "TaskDependency",
			Description: "Dependencies between tasks",
			Columns: []Column{
				{"taskId", TypeString, "Dependent task ID (references Task.id)"},
				{"dependsOnTaskId", TypeString, "Task that must be completed first (references Task.id)"},
				{"createdAt", TypeDateTime, "Creation timestamp"},
			},
		},
		{
			Name:        "Checklist",
			Description: "Checklists associated with tasks",
			Columns: []Column{
				{"id", TypeString, "Unique identifier"},
				{"taskId", TypeString, "Task ID (references Task.id, unique)"},
				{"requireAllDone", TypeBoolean, "Whether all items must be done"},
				{"createdAt", TypeDateTime, "Creation timestamp"},
				{"updatedAt", TypeDateTime, "Last update timestamp"},
			},
		},
		{
			Name:        "ChecklistItem",
			Description: "Individual items within checklists",
			Columns: []Column{
				{"id", TypeString, "Unique identifier"},
				{"checklistId", TypeString, "Checklist ID (references Checklist.id)"},
				{"label", TypeString, "Item label"},
				{"done", TypeBoolean, "Whether item is completed"},
				{"createdAt", TypeDateTime, "Creation timestamp"},
				{"updatedAt", TypeDateTime, "Last update timestamp"},
			},
		},
		{
			Name:        "TaskActivity",
			Description: "Activity log for task updates and comments",
			Columns: []Column{
				{"id", TypeString, "Unique identifier"},
				{"taskId", TypeString, "Task ID (references Task.id)"},
				{"userId", TypeString, "User ID (references User.id)"},
				{"message", TypeString, "Activity message"},
				{"metadata", TypeJSON, "Additional metadata"},
				{"createdAt", TypeDateTime, "Creation timestamp"},
			},
		},
		{
			Name:        "TaskAttachment",
			Description: "Files and attachments associated with tasks",
			Columns: []Column{
				{"id", TypeString, "Unique identifier"},
				{"taskId", TypeString, "Task ID (references Task.id)"},
				{"userId", TypeString, "User ID who uploaded (references User.id)"},
				{"type", TypeEnum, "Attachment type from TaskAttachmentType enum"},
				{"name", TypeString, "Attachment name"},
				{"objectKey", TypeString, "Storage object key"},
				{"url", TypeString, "Access URL"},
				{"mimeType", TypeString, "MIME type"},
				{"size", TypeInt, "File size in bytes"},
				{"metadata", TypeJSON, "Additional metadata"},
				{"createdAt", TypeDateTime, "Creation timestamp"},
			},
		},
		{
			Name:        "ProjectPersonnel",
			Description: "Project team members and their roles",
			Columns: []Column{
				{"id", TypeString, "Unique identifier"},
				{"projectId", TypeString, "Project ID (references Project.id)"},
				{"userId", TypeString, "User ID (references User.id)"},
				{"roleLabel", TypeString, "Custom role label"},
				{"createdAt", TypeDateTime, "Creation timestamp"},
			},
		},
		{
			Name:        "Assignment",
			Description: "User assignments to tasks with allocation percentages",
			Columns: []Column{
				{"id", TypeString, "Unique identifier"},
				{"taskId", TypeString, "Task ID (references Task.id)"},
				{"userId", TypeString, "User ID (references User.id)"},
				{"allocationPct", TypeInt, "Allocation percentage (0-100)"},
				{"startDate", TypeDateTime, "Assignment start date"},
				{"endDate", TypeDateTime, "Assignment end date"},
				{"createdAt", TypeDateTime, "Creation timestamp"},
				{"updatedAt", TypeDateTime, "Last update timestamp"},
			},
		},
		{
			Name:        "TimeEntry",
			Description: "Time entries for tasks with durations and notes",
			Columns: []Column{
				{"id", TypeString, "Unique identifier"},
				{"projectId", TypeString, "Project ID (references Project.id)"},
				{"taskId", TypeString, "Task ID (references Task.id)"},
				{"userId", TypeString, "User ID (references User.id)"},
				{"startedAt", TypeDateTime, "When time tracking started"},
				{"stoppedAt", TypeDateTime, "When time tracking stopped"},
				{"entryDate", TypeDateTime, "Entry date"},
				{"seconds", TypeInt, "Duration in seconds"},
				{"note", TypeString, "Time entry note"},
				{"rateCentsSnapshot", TypeInt, "Hourly rate snapshot in cents"},
				{"missingReminderSentAt", TypeDateTime, "When missing time reminder was sent"},
				{"createdAt", TypeDateTime, "Creation timestamp"},
				{"updatedAt", TypeDateTime, "Last update timestamp"},
			},
		},
		{
			Name:        "Expense",
			Description: "Project expenses with categories and amounts",
			Columns: []Column{
				{"id", TypeString, "Unique identifier"},
				{"projectId", TypeString, "Project ID (references Project.id)"},
				{"title", TypeString, "Expense title"},
				{"category", TypeEnum, "Expense category from ExpenseCategory enum"},
				{"amountCents", TypeInt, "Amount in cents"},
				{"description", TypeString, "Expense description"},
				{"date", TypeDateTime, "Expense date"},
				{"createdById", TypeString, "Creator user ID (references User.id)"},
				{"createdAt", TypeDateTime, "Creation timestamp"},
				{"updatedAt", TypeDateTime, "Last update timestamp"},
			},
		},
		{
			Name:        "Notification",
			Description: "System notifications with severity and delivery status",
			Columns: []Column{
				{"id", TypeString, "Unique identifier"},
				{"projectId", TypeString, "Project ID (references Project.id)"},
				{"actorId", TypeString, "Actor user ID (references User.id)"},
				{"entityType", TypeString, "Entity type (e.g., 'task', 'project')"},
				{"entityId", TypeString, "Entity ID"},
				{"category", TypeString, "Notification category"},
				{"eventKey", TypeString, "Event key"},
				{"title", TypeString, "Notification title"},
				{"body", TypeString, "Notification body"},
				{"severity", TypeEnum, "Severity from NotificationSeverity enum"},
				{"metadata", TypeJSON, "Additional metadata"},
				{"dedupeKey", TypeString, "Deduplication key"},
				{"createdAt", TypeDateTime, "Creation timestamp"},
			},
		},
		{
			Name:        "NotificationDelivery",
			Description: "Delivery status for notifications to users",
			Columns: []Column{
				{"id", TypeString, "Unique identifier"},
				{"notificationId", TypeString, "Notification ID (references Notification.id)"},
				{"userId", TypeString, "User ID (references User.id)"},
				{"channel", TypeEnum, "Delivery channel from NotificationChannel enum"},
				{"status", TypeEnum, "Delivery status from NotificationDeliveryStatus enum"},
				{"readAt", TypeDateTime, "When user read the notification"},
				{"sentAt", TypeDateTime, "When notification was sent"},
				{"errorMessage", TypeString, "Error message if delivery failed"},
				{"metadata", TypeJSON, "Additional metadata"},
				{"createdAt", TypeDateTime, "Creation timestamp"},
			},
		},
		{
			Name:        "NotificationSchedulerRun",
			Description: "Logs of notification scheduler runs",
			Columns: []Column{
				{"id", TypeString, "Unique identifier"},
				{"startedAt", TypeDateTime, "When scheduler run started"},
				{"endedAt", TypeDateTime, "When scheduler run ended"},
				{"status", TypeEnum, "Run status from SchedulerRunStatus enum"},
				{"triggeredBy", TypeString, "What triggered the run"},
				{"summaryJson", TypeJSON, "Summary data in JSON format"},
				{"createdAt", TypeDateTime, "Creation timestamp"},
				{"updatedAt", TypeDateTime, "Last update timestamp"},
			},
		},
	},
	Relationships: []Relationship{
		{"RefreshToken", "userId", "User", "id"},
		{"Project", "projectManagerId", "User", "id"},
		{"Task", "assigneeId", "User", "id"},
		{"ProjectPersonnel", "userId", "User", "id"},
		{"Assignment", "userId", "User", "id"},
		{"TaskAttachment", "userId", "User", "id"},
		{"Expense", "createdById", "User", "id"},
		{"TimeEntry", "userId", "User", "id"},
		{"TaskActivity", "userId", "User", "id"},
		{"Notification", "actorId", "User", "id"},
		{"NotificationDelivery", "userId", "User", "id"},
		{"ProjectHealthSnapshot", "projectId", "Project", "id"},
		{"ProjectTaskStatus", "projectId", "Project", "id"},
		{"Phase", "projectId", "Project", "id"},
		{"Sprint", "projectId", "Project", "id"},
		{"Task", "projectId", "Project", "id"},
		{"ProjectPersonnel", "projectId", "Project", "id"},
		{"Expense", "projectId", "Project", "id"},
		{"TimeEntry", "projectId", "Project", "id"},
		{"Notification", "projectId", "Project", "id"},
		{"Sprint", "phaseId", "Phase", "id"},
		{"Task", "sprintId", "Sprint", "id"},
		{"Task", "statusId", "ProjectTaskStatus", "id"},
		{"TaskDependency", "taskId", "Task", "id"},
		{"TaskDependency", "dependsOnTaskId", "Task", "id"},
		{"Checklist", "taskId", "Task", "id"},
		{"TaskActivity", "taskId", "Task", "id"},
		{"TaskAttachment", "taskId", "Task", "id"},
		{"Assignment", "taskId", "Task", "id"},
		{"TimeEntry", "taskId", "Task", "id"},
		{"ChecklistItem", "checklistId", "Checklist", "id"},
		{"NotificationDelivery", "notificationId", "Notification", "id"},
	},
	Notes: []string{
		"All ID fields are strings using UUID format",
		"Money amounts are stored in cents (integer) - divide by 100 for dollars",
		"Time durations are stored in seconds - divide by 3600 for hours",
		"Use ILIKE for case-insensitive text searches",
		"Enum values are stored as strings in uppercase",
		"JSON fields contain structured metadata",
		"Column names with capital letters MUST be quoted: \"firstName\", NOT firstname",
		"TaskDependency has a composite primary key (taskId, dependsOnTaskId)",
		"Assignment has a unique constraint on (taskId, userId, startDate, endDate)",
		"ProjectTaskStatus has value and position unique per project",
		"Phase position is unique per project",
		"Sprint name is unique per phase",
	},
}

// Default 返回进程级共享的Schema描述
func Default() *Schema {
	return defaultSchema
}

// UserTable 用户身份表，最小兜底查询依赖它
const UserTable = "User"

// PriorityTables 核心业务实体，关键字检索时优先考虑
var PriorityTables = []string{"User", "Project", "Task", "Expense"}
