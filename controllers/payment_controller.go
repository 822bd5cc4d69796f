package controllers

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/crisha-app/crisha-backend/config"
	"github.com/crisha-app/crisha-backend/models"
	"github.com/crisha-app/crisha-backend/services"
)

type CreatePaymentInput struct {
	PlanID string `json:"plan_id" binding:"required"`
}

// CreatePayment opens a pending transaction and returns the signed
// gateway redirect URL.
func CreatePayment(c *gin.Context) {
	db := c.MustGet("db").(*gorm.DB)
	cfg := c.MustGet("cfg").(config.Config)
	robokassa := c.MustGet("robokassa").(*services.RobokassaClient)

	uid, err := uuid.Parse(c.GetString("user_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}

	var input CreatePaymentInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	plan, ok := cfg.Plan(input.PlanID)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid plan"})
		return
	}

	tx := models.Transaction{
		UserID:          uid,
		PlanID:          plan.ID,
		Amount:          plan.Price,
		ChecksPurchased: plan.Checks,
		Status:          models.TxPending,
	}
	if err := db.Create(&tx).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create transaction"})
		return
	}

	description := fmt.Sprintf("Crisha: %d contract checks (%s)", plan.Checks, plan.ID)
	c.JSON(http.StatusOK, gin.H{
		"payment_url":    robokassa.PaymentURL(tx.Amount, tx.ID, description),
		"transaction_id": tx.ID,
	})
}

// PaymentWebhook handles the gateway result notification. Replays on
// an already completed transaction answer OK without crediting again.
func PaymentWebhook(c *gin.Context) {
	db := c.MustGet("db").(*gorm.DB)
	robokassa := c.MustGet("robokassa").(*services.RobokassaClient)

	outSum := c.PostForm("OutSum")
	invID := c.PostForm("InvId")
	signature := c.PostForm("SignatureValue")
	if outSum == "" || invID == "" || signature == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing webhook fields"})
		return
	}

	if !robokassa.VerifyWebhook(outSum, invID, signature) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad signature"})
		return
	}

	txID, err := strconv.ParseInt(invID, 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid InvId"})
		return
	}

	var transaction models.Transaction
	if err := db.First(&transaction, "id = ?", txID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown transaction"})
		return
	}

	if transaction.Status == models.TxCompleted {
		c.String(http.StatusOK, "OK%s", invID)
		return
	}

	if _, err := settlePayment(db, &transaction); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not credit payment"})
		return
	}

	c.String(http.StatusOK, "OK%s", invID)
}

// settlePayment completes a pending transaction and credits the
// profile. The pending -> completed flip is a conditional update, so
// of two overlapping deliveries only one wins it and credits; the
// loser reports credited=false and changes nothing.
func settlePayment(db *gorm.DB, transaction *models.Transaction) (credited bool, err error) {
	err = db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Transaction{}).
			Where("id = ? AND status = ?", transaction.ID, models.TxPending).
			Updates(map[string]interface{}{
				"status":       models.TxCompleted,
				"completed_at": time.Now(),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}

		tier := models.TierForChecks(transaction.ChecksPurchased)
		updates := map[string]interface{}{
			"checks_remaining": gorm.Expr("checks_remaining + ?", transaction.ChecksPurchased),
		}
		if tier != models.TierFree {
			updates["subscription_tier"] = tier
		}
		if err := tx.Model(&models.Profile{}).Where("user_id = ?", transaction.UserID).Updates(updates).Error; err != nil {
			return err
		}
		credited = true
		return nil
	})
	return credited, err
}
