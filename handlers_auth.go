package main

import (
	"net/http"

	"github.com/campuslab/lostfound_backend/models"
	"github.com/campuslab/lostfound_backend/utils"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

func bindJSON(c *gin.Context, obj interface{}) error {
	if err := c.ShouldBindJSON(obj); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok {
			fields := utils.ProcessValidationErrors(verrs)
			for field, msg := range fields {
				return utils.ValidationError("%s: %s", field, msg)
			}
		}
		return utils.ValidationError("invalid request body: %s", err.Error())
	}
	return nil
}

func registerHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewUser
		if err := bindJSON(c, &input); err != nil {
			respondError(c, err)
			return
		}
		user, err := models.RegisterUser(c.Request.Context(), &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, user)
	}
}

func loginHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.LoginInput
		if err := bindJSON(c, &input); err != nil {
			respondError(c, err)
			return
		}
		info, err := models.Login(c.Request.Context(), &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, info)
	}
}

func logoutAllHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		revoked, err := models.LogoutAll(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "logged out everywhere", "revoked_sessions": revoked})
	}
}

func meHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := models.CurrentUser(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, user)
	}
}

func logoutHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, err := models.Logout(c.Request.Context()); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "logged out"})
	}
}
