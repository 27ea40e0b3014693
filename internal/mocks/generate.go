package mocks

//go:generate mockery --name MetricStore --srcpkg github.com/aevon-lab/aevon-metrics/internal/core/storage --output ./storage --outpkg storagemocks --with-expecter
