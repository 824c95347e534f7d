package api

import (
	"net/http"
	"sort"
	"time"

	"github.com/warrantyeye/internal/database"
	"github.com/warrantyeye/internal/models"

	"github.com/gin-gonic/gin"
)

type kpis struct {
	OpenTickets    int64 `json:"open_tickets"`
	InRepair       int64 `json:"in_repair"`
	OverdueRepairs int64 `json:"overdue_repairs"`
	AlertsOpen     int64 `json:"alerts_open"`
}

type faultyProduct struct {
	ProductID uint   `json:"product_id"`
	SKU       string `json:"sku"`
	Name      string `json:"name"`
	Count     int    `json:"count"`
}

type centerPerformance struct {
	CenterID      uint    `json:"center_id"`
	Name          string  `json:"name"`
	Assigned      int     `json:"assigned"`
	ResolvedRatio float64 `json:"resolved_ratio"`
	Overdue       int     `json:"overdue"`
	AvgRepairDays float64 `json:"avg_repair_days"`
}

const (
	metricsOverdueDays   = 10
	metricsLookbackDays  = 30
	topFaultyProductsMax = 5
)

// getMetrics serves the manager dashboard KPIs: open/in-repair/overdue ticket
// counts, open alert count, top faulty products, and per-center performance.
func (s *Server) getMetrics(c *gin.Context) {
	db := database.GetDB()
	now := time.Now()
	overdueCutoff := now.AddDate(0, 0, -metricsOverdueDays)
	lookback := now.AddDate(0, 0, -metricsLookbackDays)

	var k kpis
	closed := []models.TicketStatus{
		models.TicketStatusResolved,
		models.TicketStatusReturnCompleted,
		models.TicketStatusCancelled,
		models.TicketStatusRejected,
	}
	if err := db.Model(&models.Ticket{}).Where("status NOT IN ?", closed).Count(&k.OpenTickets).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to count tickets"})
		return
	}
	db.Model(&models.Ticket{}).Where("status = ?", models.TicketStatusInRepair).Count(&k.InRepair)
	db.Model(&models.Ticket{}).
		Where("status = ? AND updated_at < ?", models.TicketStatusInRepair, overdueCutoff).
		Count(&k.OverdueRepairs)
	db.Model(&models.Alert{}).Where("status = ?", models.AlertStatusOpen).Count(&k.AlertsOpen)

	// Top faulty products over the lookback window
	var repairTickets []models.Ticket
	if err := db.Preload("Product").
		Where("ticket_type = ? AND created_at >= ?", models.TicketTypeRepair, lookback).
		Find(&repairTickets).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch repair tickets"})
		return
	}
	counts := make(map[uint]*faultyProduct)
	for _, t := range repairTickets {
		p, ok := counts[t.ProductID]
		if !ok {
			p = &faultyProduct{ProductID: t.ProductID, SKU: t.Product.SKU, Name: t.Product.Name}
			counts[t.ProductID] = p
		}
		p.Count++
	}
	topProducts := make([]faultyProduct, 0, len(counts))
	for _, p := range counts {
		topProducts = append(topProducts, *p)
	}
	sort.Slice(topProducts, func(i, j int) bool { return topProducts[i].Count > topProducts[j].Count })
	if len(topProducts) > topFaultyProductsMax {
		topProducts = topProducts[:topFaultyProductsMax]
	}

	// Per-center performance over the whole ticket history
	var centers []models.RepairCenter
	if err := db.Find(&centers).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch repair centers"})
		return
	}
	var centerTickets []models.Ticket
	if err := db.Where("repair_center_id IS NOT NULL").Find(&centerTickets).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch center tickets"})
		return
	}

	performance := make([]centerPerformance, 0, len(centers))
	for _, center := range centers {
		perf := centerPerformance{CenterID: center.ID, Name: center.Name}
		var repairDays float64
		var completed int
		for _, t := range centerTickets {
			if t.RepairCenterID == nil || *t.RepairCenterID != center.ID {
				continue
			}
			perf.Assigned++
			if t.Status.IsTerminalSuccess() {
				completed++
				repairDays += t.UpdatedAt.Sub(t.CreatedAt).Hours() / 24
			}
			if t.Status == models.TicketStatusInRepair && t.UpdatedAt.Before(overdueCutoff) {
				perf.Overdue++
			}
		}
		if perf.Assigned > 0 {
			perf.ResolvedRatio = float64(completed) / float64(perf.Assigned)
		}
		if completed > 0 {
			perf.AvgRepairDays = repairDays / float64(completed)
		}
		performance = append(performance, perf)
	}

	c.JSON(http.StatusOK, gin.H{
		"kpis":                k,
		"top_faulty_products": topProducts,
		"center_performance":  performance,
	})
}

type dailyTrend struct {
	Date     string `json:"date"`
	Created  int    `json:"created"`
	Resolved int    `json:"resolved"`
}

// getTrends serves the daily created/resolved ticket counts for the trailing
// 30 days.
func (s *Server) getTrends(c *gin.Context) {
	db := database.GetDB()
	lookback := time.Now().AddDate(0, 0, -metricsLookbackDays)

	var tickets []models.Ticket
	if err := db.Where("created_at >= ?", lookback).Find(&tickets).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch tickets"})
		return
	}

	byDate := make(map[string]*dailyTrend)
	for _, t := range tickets {
		date := t.CreatedAt.Format("2006-01-02")
		d, ok := byDate[date]
		if !ok {
			d = &dailyTrend{Date: date}
			byDate[date] = d
		}
		d.Created++
		if t.Status == models.TicketStatusResolved || t.Status == models.TicketStatusReturnCompleted {
			d.Resolved++
		}
	}

	trend := make([]dailyTrend, 0, len(byDate))
	for _, d := range byDate {
		trend = append(trend, *d)
	}
	sort.Slice(trend, func(i, j int) bool { return trend[i].Date < trend[j].Date })

	c.JSON(http.StatusOK, gin.H{"daily_trend": trend})
}
