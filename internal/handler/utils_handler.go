package handler

import (
	"net/http"

	"backend/internal/currency"
	"backend/internal/middleware"
	"backend/internal/repository"
	"backend/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type UtilsHandler struct {
	converter currency.Converter
	countries currency.CountryLister
	userRepo  repository.UserRepository
}

func NewUtilsHandler(converter currency.Converter, countries currency.CountryLister, userRepo repository.UserRepository) *UtilsHandler {
	return &UtilsHandler{converter: converter, countries: countries, userRepo: userRepo}
}

func (h *UtilsHandler) RegisterRoutes(router *gin.RouterGroup) {
	utils := router.Group("/utils")
	{
		// Countries feed the public signup form, so no auth.
		utils.GET("/countries", h.GetCountries)
		utils.GET("/convert", middleware.RequireRole(h.userRepo), h.Convert)
	}
}

// GetCountries handles GET /utils/countries
// @Summary      List countries and currencies
// @Description  Returns country names with their currency codes for the signup form
// @Tags         utils
// @Produce      json
// @Success      200  {object}  response.Response{data=[]currency.Country}
// @Failure      502  {object}  response.Response
// @Router       /utils/countries [get]
func (h *UtilsHandler) GetCountries(c *gin.Context) {
	countries, err := h.countries.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusBadGateway, response.Error(http.StatusBadGateway, "Failed to fetch countries: "+err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, countries))
}

// Convert handles GET /utils/convert
// @Summary      Convert an amount between currencies
// @Tags         utils
// @Produce      json
// @Security     BearerAuth
// @Param        from    query     string  true  "Source currency code"
// @Param        to      query     string  true  "Target currency code"
// @Param        amount  query     string  true  "Decimal amount"
// @Success      200     {object}  response.Response{data=object}
// @Failure      400     {object}  response.Response
// @Failure      502     {object}  response.Response
// @Router       /utils/convert [get]
func (h *UtilsHandler) Convert(c *gin.Context) {
	from := c.Query("from")
	to := c.Query("to")
	rawAmount := c.Query("amount")
	if from == "" || to == "" || rawAmount == "" {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "from, to and amount query parameters are required"))
		return
	}

	amount, err := decimal.NewFromString(rawAmount)
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid amount"))
		return
	}

	converted, err := h.converter.Convert(c.Request.Context(), from, to, amount)
	if err != nil {
		c.JSON(http.StatusBadGateway, response.Error(http.StatusBadGateway, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, map[string]string{
		"from":      from,
		"to":        to,
		"amount":    amount.String(),
		"converted": converted.String(),
	}))
}
