package model

import "time"

// Statistics 用户统计缓存，只由统计引擎写入
type Statistics struct {
	TotalBehaviors int       `json:"totalBehaviors"`
	TotalTodos     int       `json:"totalTodos"`
	CompletedTodos int       `json:"completedTodos"`
	StreakDays     int       `json:"streakDays"`
	LastActive     time.Time `json:"lastActive"`
}

const (
	ThemeLight      = "light"
	ThemeDark       = "dark"
	DefaultLanguage = "en"
)

type Preferences struct {
	Theme    string `json:"theme"`
	Language string `json:"language"`
}

func DefaultPreferences() Preferences {
	return Preferences{Theme: ThemeLight, Language: DefaultLanguage}
}

// User 令牌字段只保存 SHA-256 摘要，不序列化
type User struct {
	ID                int         `json:"id"`
	Name              string      `json:"name"`
	Email             string      `json:"email"`
	PasswordHash      string      `json:"-"`
	Preferences       Preferences `json:"preferences"`
	Statistics        Statistics  `json:"statistics"`
	CreatedAt         time.Time   `json:"createdAt"`
	RefreshTokenHash  *string     `json:"-"`
	ResetTokenHash    *string     `json:"-"`
	ResetTokenExpires *time.Time  `json:"-"`
}

// StatisticsUpdate 部分更新，nil 字段保持原值
type StatisticsUpdate struct {
	TotalBehaviors *int
	TotalTodos     *int
	CompletedTodos *int
	StreakDays     *int
	LastActive     *time.Time
}
