package model

// SysUser 系统用户（宿主应用的运营/操作员账号）
type SysUser struct {
	BaseModel
	// 基础信息
	Username string `gorm:"size:100;uniqueIndex;not null"`
	Password string `gorm:"size:255;not null"` // 哈希密码
	Email    string `gorm:"size:100"`

	// 系统级角色: admin (管理员), operator (运营)
	Role string `gorm:"size:20;default:'operator'"`

	IsActive bool `gorm:"default:true"`

	// 该用户名下已连接的 eBay 账号
	EbayAccounts []EbayAccount `gorm:"foreignKey:SysUserID"`
}

func (SysUser) TableName() string {
	return "sys_users"
}
