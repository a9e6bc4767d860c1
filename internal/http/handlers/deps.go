package handlers

import (
	"secondhand/internal/config"
	applog "secondhand/internal/log"
	"secondhand/internal/repos"
	"secondhand/internal/services"

	"github.com/jmoiron/sqlx"
)

type Deps struct {
	Auth *services.AuthService

	AuthHandler     *AuthHandler
	CategoryHandler *CategoryHandler
	ProductHandler  *ProductHandler
	OrderHandler    *OrderHandler
	UploadHandler   *UploadHandler
}

// imageStore picks Cloudinary when configured, the local media dir otherwise.
func imageStore(cfg config.Config) services.ImageStore {
	if cfg.CloudinaryURL != "" {
		cs, err := services.NewCloudinaryStore(cfg.CloudinaryURL, "secondhand")
		if err == nil {
			return cs
		}
		applog.Fail("upload.cloudinary.init", err, nil)
	}
	return services.LocalStore{Dir: cfg.MediaDir, URLPrefix: cfg.MediaURL}
}

func NewDeps(db *sqlx.DB, cfg config.Config) *Deps {
	userRepo := repos.NewUserRepo(db)
	tokenRepo := repos.NewTokenRepo(db)
	prodRepo := repos.NewProductRepo(db)
	orderRepo := repos.NewOrderRepo(db)

	authSvc := services.NewAuthService(userRepo, tokenRepo, cfg.JWTSecret, cfg.JWTTTL)
	catalogSvc := services.NewCatalogService(prodRepo)
	orderSvc := services.NewOrderService(orderRepo, prodRepo)
	uploadSvc := services.NewUploadService(imageStore(cfg))

	return &Deps{
		Auth:            authSvc,
		AuthHandler:     &AuthHandler{Auth: authSvc},
		CategoryHandler: &CategoryHandler{Catalog: catalogSvc},
		ProductHandler:  &ProductHandler{Catalog: catalogSvc},
		OrderHandler:    &OrderHandler{Orders: orderSvc},
		UploadHandler:   &UploadHandler{Uploads: uploadSvc},
	}
}
