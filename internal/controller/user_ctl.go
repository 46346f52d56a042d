package controller

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"ebay_link_v1_202608/internal/service"
)

type UserController struct {
	userService *service.UserService
}

func NewUserController(user *service.UserService) *UserController {
	return &UserController{userService: user}
}

type loginReq struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login
// @Summary 系统用户登录
// @Tags User (用户模块)
// @Accept json
// @Produce json
// @Param body body loginReq true "登录请求"
// @Success 200 {object} service.LoginResult
// @Failure 401 {object} map[string]string "用户名或密码错误"
// @Router /users/login [post]
func (ctrl *UserController) Login(c *gin.Context) {
	var req loginReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "参数错误", "detail": err.Error()})
		return
	}

	result, err := ctrl.userService.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) || errors.Is(err, service.ErrUserDisabled) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "登录失败", "detail": err.Error()})
		return
	}

	c.JSON(http.StatusOK, result)
}
