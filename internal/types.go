package internal

import (
	"buildprice/priceworker/services/cache"
	"buildprice/priceworker/services/publisher"
	"buildprice/priceworker/services/rates"
	"buildprice/priceworker/services/store"
)

// Dependencies holds all service dependencies
type Dependencies struct {
	Cache     cache.CacheService
	Publisher publisher.Publisher
	Store     store.Store
	Rates     rates.Provider
}
