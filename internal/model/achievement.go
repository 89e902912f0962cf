package model

import "time"

// EarnedAchievement 用户成就日志中的一条，按 Name 去重
type EarnedAchievement struct {
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Icon        string    `json:"icon"`
	DateEarned  time.Time `json:"dateEarned"`
}
