package controllers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/shashiranjanraj/foodie/app/services"
	"github.com/shashiranjanraj/foodie/pkg/ctx"
	"github.com/shopspring/decimal"
)

const maxUploadBytes = 8 << 20

type ItemController struct {
	catalog *services.CatalogService
}

func NewItemController(catalog *services.CatalogService) *ItemController {
	return &ItemController{catalog: catalog}
}

func (h *ItemController) List(c *ctx.Context) {
	items, err := h.catalog.List(c.Context())
	if err != nil {
		fail(c, err)
		return
	}
	c.Success(items)
}

func (h *ItemController) Show(c *ctx.Context) {
	item, err := h.catalog.Get(c.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.Success(item)
}

func (h *ItemController) Create(c *ctx.Context) {
	in, image, ok := h.form(c)
	if !ok {
		return
	}
	item, err := h.catalog.Create(c.Context(), in, image)
	if err != nil {
		fail(c, err)
		return
	}
	c.Created(item)
}

func (h *ItemController) Update(c *ctx.Context) {
	in, image, ok := h.form(c)
	if !ok {
		return
	}
	item, err := h.catalog.Update(c.Context(), c.Param("id"), in, image)
	if err != nil {
		fail(c, err)
		return
	}
	c.Success(item)
}

// QuickUpdate is the JSON PATCH used by the admin table for price and stock.
func (h *ItemController) QuickUpdate(c *ctx.Context) {
	var in struct {
		Price    *decimal.Decimal `json:"price"`
		Quantity *int             `json:"quantity"`
	}
	if !c.BindJSON(&in) {
		return
	}
	item, err := h.catalog.QuickUpdate(c.Context(), c.Param("id"), in.Price, in.Quantity)
	if err != nil {
		fail(c, err)
		return
	}
	c.Success(item)
}

func (h *ItemController) Delete(c *ctx.Context) {
	if err := h.catalog.Delete(c.Context(), c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	c.NoContent()
}

// form reads the multipart item form. The image part is optional here;
// the service decides whether it is required.
func (h *ItemController) form(c *ctx.Context) (services.ItemInput, *services.Upload, bool) {
	c.R.Body = http.MaxBytesReader(c.W, c.R.Body, maxUploadBytes)
	if err := c.R.ParseMultipartForm(maxUploadBytes); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		c.Error(http.StatusBadRequest, "invalid multipart form: "+err.Error())
		return services.ItemInput{}, nil, false
	}

	errs := map[string]string{}
	in := services.ItemInput{
		Name:        strings.TrimSpace(c.PostForm("name")),
		Description: c.PostForm("description"),
		Category:    c.PostForm("category"),
	}

	if v := strings.TrimSpace(c.PostForm("price")); v != "" {
		d, err := decimal.NewFromString(v)
		if err != nil {
			errs["price"] = "price must be a number"
		}
		in.Price = d
	} else {
		errs["price"] = "price is required"
	}
	in.Quantity = formInt(c.PostForm("quantity"), "quantity", errs)
	in.Hearts = formInt(c.PostForm("hearts"), "hearts", errs)
	if v := strings.TrimSpace(c.PostForm("rating")); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			errs["rating"] = "rating must be a number"
		}
		in.Rating = f
	}
	if len(errs) > 0 {
		c.ValidationError(errs)
		return in, nil, false
	}

	file, header, err := c.R.FormFile("image")
	if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
		return in, nil, true
	}
	if err != nil {
		c.Error(http.StatusBadRequest, "invalid image upload")
		return in, nil, false
	}
	return in, &services.Upload{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Body:        file,
	}, true
}

func formInt(v, field string, errs map[string]string) int {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		errs[field] = field + " must be a whole number"
	}
	return n
}
