package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/gosimple/slug"
	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"chess-mint-rewards/models"
)

// ObjectUploader stores a JSON document under key.
type ObjectUploader interface {
	PutJSON(ctx context.Context, key string, body []byte) error
}

type MetadataAttribute struct {
	TraitType string `json:"trait_type"`
	Value     string `json:"value"`
}

// CollectibleMetadata is the document a wallet reads when displaying the minted object.
type CollectibleMetadata struct {
	Name        string              `json:"name"`
	Description string              `json:"description"`
	Image       string              `json:"image"`
	Attributes  []MetadataAttribute `json:"attributes"`
}

// MetadataCatalog publishes reward metadata and resolves its public URL.
type MetadataCatalog struct {
	baseURL  string
	uploader ObjectUploader
	logger   *zap.Logger
}

func NewMetadataCatalog(baseURL string, uploader ObjectUploader, logger *zap.Logger) *MetadataCatalog {
	return &MetadataCatalog{
		baseURL:  strings.TrimRight(baseURL, "/"),
		uploader: uploader,
		logger:   logger,
	}
}

// MetadataKey is the object key for a reward, e.g. collectibles/metadata/first-victory.json.
func MetadataKey(def models.RewardDefinition) string {
	return "collectibles/metadata/" + slug.Make(def.Name) + ".json"
}

// URLFor returns the metadata URL for a reward type, or "" when no CDN is configured.
func (c *MetadataCatalog) URLFor(t models.RewardType) string {
	def, ok := models.LookupReward(t)
	if !ok || c.baseURL == "" {
		return ""
	}
	return c.baseURL + "/" + MetadataKey(def)
}

func (c *MetadataCatalog) Document(def models.RewardDefinition) CollectibleMetadata {
	title := cases.Title(language.English)
	image := def.ImageURL
	if c.baseURL != "" {
		image = c.baseURL + "/" + def.ImageURL
	}
	return CollectibleMetadata{
		Name:        def.Name,
		Description: def.Description,
		Image:       image,
		Attributes: []MetadataAttribute{
			{TraitType: "Rarity", Value: title.String(def.Rarity)},
			{TraitType: "Reward", Value: title.String(strings.ReplaceAll(string(def.Type), "_", " "))},
		},
	}
}

// PublishAll uploads a metadata document for every catalog reward.
func (c *MetadataCatalog) PublishAll(ctx context.Context) error {
	if c.uploader == nil {
		return nil
	}
	for _, def := range models.RewardCatalog {
		body, err := json.Marshal(c.Document(def))
		if err != nil {
			return err
		}
		key := MetadataKey(def)
		if err := c.uploader.PutJSON(ctx, key, body); err != nil {
			return fmt.Errorf("upload %s: %w", key, err)
		}
		c.logger.Debug("reward metadata published", zap.String("key", key))
	}
	c.logger.Info("reward metadata published", zap.Int("count", len(models.RewardCatalog)))
	return nil
}
