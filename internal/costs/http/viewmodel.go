package costhttp

import (
	"encoding/json"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/sitecost/internal/costs"
)

type tenantVM struct {
	Site    string `json:"site"`
	Company string `json:"company"`
}

type dateRangeVM struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

type lineItemVM struct {
	MaterialName       string      `json:"materialName"`
	Quantity           json.Number `json:"quantity"`
	Unit               string      `json:"unit"`
	MaterialUnitPrice  json.Number `json:"materialUnitPrice"`
	LaborUnitPrice     json.Number `json:"laborUnitPrice"`
	MaterialCost       json.Number `json:"materialCost"`
	LaborCost          json.Number `json:"laborCost"`
	TotalPrice         json.Number `json:"totalPrice"`
	Location           string      `json:"location"`
	ContributingActors []string    `json:"contributingActors"`
}

type summaryVM struct {
	LineItemCount      int              `json:"lineItemCount"`
	GrandTotal         json.Number      `json:"grandTotal"`
	TotalMaterialCost  json.Number      `json:"totalMaterialCost"`
	TotalLaborCost     json.Number      `json:"totalLaborCost"`
	DataSource         costs.DataSource `json:"dataSource"`
	TotalDailyReports  int              `json:"totalDailyReports"`
	TotalSiteMaterials int              `json:"totalSiteMaterials"`
	PartitionsScanned  int              `json:"partitionsScanned"`
	PartitionsSkipped  int              `json:"partitionsSkipped"`
}

type aggregateVM struct {
	Success   bool         `json:"success"`
	Tenant    tenantVM     `json:"tenant"`
	DateRange dateRangeVM  `json:"dateRange"`
	LineItems []lineItemVM `json:"lineItems"`
	Summary   summaryVM    `json:"summary"`
}

type partitionsVM struct {
	Success    bool                    `json:"success"`
	Tenant     tenantVM                `json:"tenant"`
	Partitions []costs.PartitionStatus `json:"partitions"`
}

// number renders a decimal as an exact JSON number.
func number(d decimal.Decimal) json.Number {
	return json.Number(d.String())
}

func newAggregateVM(res costs.Result) aggregateVM {
	vm := aggregateVM{
		Success:   true,
		Tenant:    tenantVM{Site: res.Tenant.Site, Company: res.Tenant.Company},
		DateRange: dateRangeVM{Start: res.Range.StartString(), End: res.Range.EndString()},
		LineItems: make([]lineItemVM, 0, len(res.LineItems)),
		Summary: summaryVM{
			LineItemCount:      res.Summary.LineItemCount,
			GrandTotal:         number(res.Summary.GrandTotal),
			TotalMaterialCost:  number(res.Summary.TotalMaterialCost),
			TotalLaborCost:     number(res.Summary.TotalLaborCost),
			DataSource:         res.Summary.DataSource,
			TotalDailyReports:  res.Summary.TotalDailyReports,
			TotalSiteMaterials: res.Summary.TotalSiteMaterials,
			PartitionsScanned:  res.Summary.PartitionsScanned,
			PartitionsSkipped:  res.Summary.PartitionsSkipped,
		},
	}
	for _, item := range res.LineItems {
		actors := item.ContributingActors
		if actors == nil {
			actors = []string{}
		}
		vm.LineItems = append(vm.LineItems, lineItemVM{
			MaterialName:       item.MaterialName,
			Quantity:           number(item.Quantity),
			Unit:               item.Unit,
			MaterialUnitPrice:  number(item.MaterialUnitPrice),
			LaborUnitPrice:     number(item.LaborUnitPrice),
			MaterialCost:       number(item.MaterialCost),
			LaborCost:          number(item.LaborCost),
			TotalPrice:         number(item.TotalPrice),
			Location:           item.Location,
			ContributingActors: actors,
		})
	}
	return vm
}
