package wbsync

import (
	"context"

	"bitbucket.org/pushfeedback/feedback_backend/config"
	"bitbucket.org/pushfeedback/feedback_backend/models"
	"bitbucket.org/pushfeedback/feedback_backend/portal"
	"github.com/sirupsen/logrus"
)

// ReconcileSuppliers creates local records for every seller account the
// session can see that is not yet tracked locally, and returns the full
// post-reconciliation list. Suppliers created by a prior partial run are
// kept even when the portal call fails.
func ReconcileSuppliers(ctx context.Context, user *models.User) ([]*models.Supplier, error) {
	if !user.HasSession() {
		return nil, &portal.Error{Kind: portal.ErrorKindNotAuthenticated, Message: "not authorized in the seller portal"}
	}

	client := portal.NewClient("", *user.WBToken)
	remote, err := client.GetSuppliers(ctx)
	if err != nil {
		return nil, err
	}

	for _, dto := range remote {
		supplier, err := models.EnsureSupplier(ctx, user.ID, &models.NewSupplier{
			ExternalId: dto.ID,
			OldId:      dto.OldID,
			Name:       dto.Name,
			FullName:   dto.FullName,
		})
		if err != nil {
			return nil, err
		}
		config.GetLogger().WithFields(logrus.Fields{
			"module":      "wbsync",
			"user_id":     user.ID,
			"supplier_id": supplier.ExternalId,
		}).Debug("supplier reconciled")
	}

	return models.ListSuppliers(ctx, user.ID)
}
