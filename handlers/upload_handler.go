package handlers

import (
	"strconv"
	"time"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/gofiber/fiber/v2"
)

const profileUploadFolder = "tutor_booking_profiles"

// UploadSigner signs direct browser uploads of profile pictures.
type UploadSigner struct {
	apiKey    string
	apiSecret string
	cloudName string
	folder    string
}

func NewUploadSigner(cloudinaryURL string) (*UploadSigner, error) {
	cld, err := cloudinary.NewFromURL(cloudinaryURL)
	if err != nil {
		return nil, err
	}
	return &UploadSigner{
		apiKey:    cld.Config.Cloud.APIKey,
		apiSecret: cld.Config.Cloud.APISecret,
		cloudName: cld.Config.Cloud.CloudName,
		folder:    profileUploadFolder,
	}, nil
}

// Sign returns the signature for an upload into the profile folder at ts.
func (s *UploadSigner) Sign(ts time.Time) (string, error) {
	params, err := api.StructToParams(uploader.UploadParams{Folder: s.folder})
	if err != nil {
		return "", err
	}
	params.Set("timestamp", strconv.FormatInt(ts.Unix(), 10))
	return api.SignParameters(params, s.apiSecret)
}

// GenerateUploadSignature creates a secure signature for a frontend upload.
func (h *Handler) GenerateUploadSignature(c *fiber.Ctx) error {
	if h.Uploads == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "Uploads are not configured"})
	}
	now := time.Now()
	signature, err := h.Uploads.Sign(now)
	if err != nil {
		return h.writeError(c, err, nil)
	}
	return c.JSON(fiber.Map{
		"signature": signature,
		"timestamp": now.Unix(),
		"apiKey":    h.Uploads.apiKey,
		"cloudName": h.Uploads.cloudName,
		"folder":    h.Uploads.folder,
	})
}
