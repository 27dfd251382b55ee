package graphql

// GraphQL documents sent to the storefront API. Mutation payloads carry the
// cart-item id so later updates and removals can address the line.

const cartItemFields = `
      _id
      quantity
      product {
        _id
        title
        cost
        availableQuantity
        isArchived
      }`

const addItemMutation = `
  mutation AddItem($input: AddItemArgs!) {
    addItem(input: $input) {
      _id
      hash
      items {` + cartItemFields + `
      }
    }
  }`

const removeItemMutation = `
  mutation RemoveItem($input: RemoveItemArgs!) {
    removeItem(input: $input) {
      _id
      hash
      items {` + cartItemFields + `
      }
    }
  }`

const updateItemQuantityMutation = `
  mutation UpdateItemQuantity($input: UpdateItemQuantityArgs!) {
    updateItemQuantity(input: $input) {
      _id
      hash
      items {` + cartItemFields + `
      }
    }
  }`

const getCartQuery = `
  query GetCart {
    getCart {
      _id
      hash
      items {` + cartItemFields + `
        cartId
        updatedAt
        addedAt
      }
      createdAt
      updatedAt
    }
  }`

const getProductsQuery = `
  query GetProducts {
    getProducts {
      total
      products {
        _id
        title
        cost
        availableQuantity
        isArchived
      }
    }
  }`

const registerMutation = `
  mutation Register {
    register {
      _id
      token
      cartId
    }
  }`
