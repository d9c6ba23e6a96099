package tracking

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"bitbucket.org/pushfeedback/feedback_backend/models"
	"bitbucket.org/pushfeedback/feedback_backend/portal"
	"github.com/gin-gonic/gin"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func ExportTrackedHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := userFromQuery(c)
		if !ok {
			return
		}
		markForDeletion := c.Query("mark_for_deletion") == "true"

		data, err := ExportTracked(c.Request.Context(), user, markForDeletion)
		if err != nil {
			respondExportError(c, err)
			return
		}
		c.Header("Content-Disposition", "attachment; filename=tracked_articles.xlsx")
		c.Data(http.StatusOK, xlsxContentType, data)
	}
}

func ExportCatalogHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := userFromQuery(c)
		if !ok {
			return
		}
		supplierId, err := strconv.Atoi(c.Query("supplier_id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "reason": "supplier_id is required"})
			return
		}
		supplier, err := models.GetSupplier(c.Request.Context(), user.ID, supplierId)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"success": false, "reason": "supplier not found"})
			return
		}

		data, err := ExportCatalog(c.Request.Context(), user, supplier)
		if err != nil {
			respondExportError(c, err)
			return
		}
		c.Header("Content-Disposition", "attachment; filename=catalog.xlsx")
		c.Data(http.StatusOK, xlsxContentType, data)
	}
}

func ImportAddHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := userFromQuery(c)
		if !ok {
			return
		}
		supplierId, err := strconv.Atoi(c.Query("supplier_id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "reason": "supplier_id is required"})
			return
		}
		supplier, err := models.GetSupplier(c.Request.Context(), user.ID, supplierId)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"success": false, "reason": "supplier not found"})
			return
		}
		fileBytes, ok := fileFromForm(c)
		if !ok {
			return
		}

		added, err := AddFromImport(c.Request.Context(), supplier, fileBytes)
		if err != nil {
			respondExportError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "added": added})
	}
}

func ImportRemoveHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := userFromQuery(c)
		if !ok {
			return
		}
		fileBytes, ok := fileFromForm(c)
		if !ok {
			return
		}

		removed, err := RemoveFromImport(c.Request.Context(), user, fileBytes)
		if err != nil {
			respondExportError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "removed": removed})
	}
}

func TrackedArticlesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := userFromQuery(c)
		if !ok {
			return
		}
		articles, err := models.ListTrackedArticlesForUser(c.Request.Context(), user.ID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "reason": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "articles": articles})
	}
}

func userFromQuery(c *gin.Context) (*models.User, bool) {
	chatId, err := strconv.ParseInt(c.Query("chat_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "reason": "chat_id is required"})
		return nil, false
	}
	user, err := models.GetUserByChatId(c.Request.Context(), chatId)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "reason": "user not found"})
		return nil, false
	}
	return user, true
}

func fileFromForm(c *gin.Context) ([]byte, bool) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "reason": "file is required"})
		return nil, false
	}
	f, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "reason": "unable to read file"})
		return nil, false
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "reason": "unable to read file"})
		return nil, false
	}
	return data, true
}

func respondExportError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrNoSuppliers), errors.Is(err, ErrNoTrackedArticles):
		c.JSON(http.StatusNotFound, gin.H{"success": false, "reason": err.Error()})
	case errors.Is(err, ErrNotExcelFile):
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "reason": err.Error()})
	case portal.IsNotFound(err):
		c.JSON(http.StatusNotFound, gin.H{"success": false, "reason": err.Error()})
	case portal.KindOf(err) == portal.ErrorKindNotAuthenticated:
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "reason": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "reason": err.Error()})
	}
}
