// Package indicators provides price-series statistics used by the regime
// classifier, the risk calculator, stop placement and the EMA advisor.
package indicators
