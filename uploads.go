package main

import (
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/campuslab/lostfound_backend/config"
	"github.com/campuslab/lostfound_backend/utils"
	"github.com/gin-gonic/gin"
)

const maxUploadSize = 10 << 20 // 10 MB

var allowedImageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".webp": true,
}

func uploadDir() string {
	if dir := os.Getenv("UPLOAD_DIR"); dir != "" {
		return dir
	}
	return "uploads"
}

// uploadImageHandler stores an uploaded image and returns its path, which the
// client then references in image_paths when creating an item. With
// analyze=true and a configured analyzer service the response also carries a
// generated description that feeds the matcher.
func uploadImageHandler(analyzer *utils.ImageAnalyzer) gin.HandlerFunc {
	return func(c *gin.Context) {
		fileHeader, err := c.FormFile("image")
		if err != nil {
			respondError(c, utils.ValidationError("an image file is required"))
			return
		}
		if fileHeader.Size > maxUploadSize {
			respondError(c, utils.ValidationError("image exceeds the %d MB limit", maxUploadSize>>20))
			return
		}
		ext := strings.ToLower(filepath.Ext(fileHeader.Filename))
		if !allowedImageExtensions[ext] {
			respondError(c, utils.ValidationError("unsupported image type %q", ext))
			return
		}

		src, err := fileHeader.Open()
		if err != nil {
			respondError(c, err)
			return
		}
		defer src.Close()
		content, err := io.ReadAll(io.LimitReader(src, maxUploadSize+1))
		if err != nil {
			respondError(c, err)
			return
		}

		filename := utils.GenerateUniqueFilename() + ext
		dir := uploadDir()
		if err := os.MkdirAll(dir, 0o755); err != nil {
			respondError(c, err)
			return
		}
		dest := filepath.Join(dir, filename)
		if err := os.WriteFile(dest, content, 0o644); err != nil {
			respondError(c, err)
			return
		}

		var aiDescription string
		if c.Query("analyze") == "true" && analyzer.Enabled() {
			desc, err := analyzer.Analyze(c.Request.Context(), filename, content, c.PostForm("hint"))
			if err != nil {
				// The analyzer is an enrichment, not a gate.
				config.LogWarn(config.GetLogger(), "uploads.go", "uploadImageHandler", "image analysis failed", filename, err)
			} else {
				aiDescription = desc
			}
		}

		c.JSON(http.StatusCreated, gin.H{
			"path":           dest,
			"url":            "/uploads/" + filename,
			"ai_description": aiDescription,
		})
	}
}
