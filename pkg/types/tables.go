package types

// TableKind names one tracked record collection. Only kinds enumerated
// here participate in sync; a collection absent from this list is
// invisible to the engine.
type TableKind string

// Tracked tables, one per organizer module.
const (
	TableUsers                TableKind = "users"
	TableHouseholds           TableKind = "households"
	TableHouseholdMembers     TableKind = "householdMembers"
	TableChores               TableKind = "chores"
	TableChoreAssignments     TableKind = "choreAssignments"
	TableChoreCompletions     TableKind = "choreCompletions"
	TableGroceryLists         TableKind = "groceryLists"
	TableGroceryItems         TableKind = "groceryItems"
	TablePantryItems          TableKind = "pantryItems"
	TableMealPlans            TableKind = "mealPlans"
	TableRecipes              TableKind = "recipes"
	TableRecipeIngredients    TableKind = "recipeIngredients"
	TableShoppingTrips        TableKind = "shoppingTrips"
	TableDocuments            TableKind = "documents"
	TableDocumentFolders      TableKind = "documentFolders"
	TableSubscriptions        TableKind = "subscriptions"
	TableBills                TableKind = "bills"
	TablePayments             TableKind = "payments"
	TableBudgets              TableKind = "budgets"
	TableBudgetCategories     TableKind = "budgetCategories"
	TableExpenses             TableKind = "expenses"
	TableSavingsCampaigns     TableKind = "savingsCampaigns"
	TableSavingsContributions TableKind = "savingsContributions"
	TableMaintenanceTasks     TableKind = "maintenanceTasks"
	TableMaintenanceLogs      TableKind = "maintenanceLogs"
	TableAppliances           TableKind = "appliances"
	TableWarranties           TableKind = "warranties"
	TableVehicles             TableKind = "vehicles"
	TableVehicleServices      TableKind = "vehicleServices"
	TablePets                 TableKind = "pets"
	TablePetCareTasks         TableKind = "petCareTasks"
	TablePlants               TableKind = "plants"
	TablePlantCareTasks       TableKind = "plantCareTasks"
	TableInventoryItems       TableKind = "inventoryItems"
	TableContacts             TableKind = "contacts"
	TableEvents               TableKind = "events"
	TableReminders            TableKind = "reminders"
	TableNotes                TableKind = "notes"
	TableTags                 TableKind = "tags"
	TableSettings             TableKind = "settings"
)

// TrackedTables lists every tracked kind for enumeration. Adding a new
// collection to the product requires adding it here or it will not sync.
var TrackedTables = []TableKind{
	TableUsers,
	TableHouseholds,
	TableHouseholdMembers,
	TableChores,
	TableChoreAssignments,
	TableChoreCompletions,
	TableGroceryLists,
	TableGroceryItems,
	TablePantryItems,
	TableMealPlans,
	TableRecipes,
	TableRecipeIngredients,
	TableShoppingTrips,
	TableDocuments,
	TableDocumentFolders,
	TableSubscriptions,
	TableBills,
	TablePayments,
	TableBudgets,
	TableBudgetCategories,
	TableExpenses,
	TableSavingsCampaigns,
	TableSavingsContributions,
	TableMaintenanceTasks,
	TableMaintenanceLogs,
	TableAppliances,
	TableWarranties,
	TableVehicles,
	TableVehicleServices,
	TablePets,
	TablePetCareTasks,
	TablePlants,
	TablePlantCareTasks,
	TableInventoryItems,
	TableContacts,
	TableEvents,
	TableReminders,
	TableNotes,
	TableTags,
	TableSettings,
}

var trackedSet = func() map[TableKind]bool {
	m := make(map[TableKind]bool, len(TrackedTables))
	for _, k := range TrackedTables {
		m[k] = true
	}
	return m
}()

// IsTracked reports whether kind is a tracked table.
func (k TableKind) IsTracked() bool {
	return trackedSet[k]
}

// String returns the logical table name as used on the wire.
func (k TableKind) String() string {
	return string(k)
}
